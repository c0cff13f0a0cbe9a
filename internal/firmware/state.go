package firmware

// State names one lifecycle phase. The string values appear in logs and
// the boot journal.
type State string

const (
	StateColdInit     State = "cold-init"
	StateSubsystemsUp State = "subsystems-up"
	StateFSReady      State = "fs-ready"
	StateBootScripts  State = "running-bootscripts"
	StateInteractive  State = "interactive"
	StateRemoteScript State = "executing-remote-script"
	StateTeardown     State = "soft-reset-teardown"
	StateHalted       State = "halted"
)
