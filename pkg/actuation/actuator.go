package actuation

// Result is the robot's verdict on one command.
type Result struct {
	CommandID string
	OK        bool
	Reason    string // Set on failure
}

// Actuator executes commands on the robot. Do returns once a command is
// accepted for execution; the outcome arrives later on Results. An
// actuator must deliver exactly one Result per accepted command, even if
// the link dies (a synthetic failure is fine).
type Actuator interface {
	Do(cmd Command) error
	Results() <-chan Result
	Close() error
}

// Nop is the actuator used when no robot is configured. Every command
// completes immediately, so the rest of the pipeline behaves as if a
// very fast robot were attached.
type Nop struct {
	results chan Result
}

// NewNop creates a no-op actuator.
func NewNop() *Nop {
	return &Nop{results: make(chan Result, 64)}
}

// Do implements Actuator.
func (n *Nop) Do(cmd Command) error {
	select {
	case n.results <- Result{CommandID: cmd.ID, OK: true}:
	default:
		// Nobody draining results; dropping the ack is harmless here.
	}
	return nil
}

// Results implements Actuator.
func (n *Nop) Results() <-chan Result {
	return n.results
}

// Close implements Actuator.
func (n *Nop) Close() error {
	return nil
}

// Verify implementations at compile time.
var (
	_ Actuator = (*Nop)(nil)
	_ Actuator = (*Link)(nil)
	_ Actuator = (*Mock)(nil)
)
