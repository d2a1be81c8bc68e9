package engine

import "errors"

// Engine-local sentinels not already covered by internal/feishu's taxonomy
// (§7 kinds 5-6: LocalIO and PolicyViolation are produced here;
// AuthUnavailable/RemoteTransient/RemoteGone/RemotePermanent are produced by
// internal/feishu and simply propagated; Configuration errors come from
// internal/config).
var (
	ErrLocalIO          = errors.New("engine: local filesystem error")
	ErrPolicyViolation   = errors.New("engine: operation would violate the fixed local-root scope")
	ErrUnknownOpcode    = errors.New("engine: unknown retry opcode")
)
