package trust

import "golang.org/x/sync/singleflight"

// singleflightGroup collapses concurrent first-use (or changed-fingerprint)
// prompts for the same (host, port) into a single invocation of the user
// callback, so two goroutines racing to connect to the same new server
// don't each pop a separate trust prompt.
type singleflightGroup = singleflight.Group
