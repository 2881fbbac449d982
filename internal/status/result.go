package status

// CheckResult is the status record shown on the display.
// changed is an edge-triggered redraw signal: setters raise it, Render clears it.
// Not safe for concurrent use; the owner guards it.
type CheckResult struct {
	ip       bool
	internet bool
	bus      bool
	changed  bool
}

func (r *CheckResult) SetIP(v bool) {
	r.ip = v
	r.changed = true
}

func (r *CheckResult) SetInternet(v bool) {
	r.internet = v
	r.changed = true
}

func (r *CheckResult) SetBus(v bool) {
	r.bus = v
	r.changed = true
}

func (r *CheckResult) IP() bool       { return r.ip }
func (r *CheckResult) Internet() bool { return r.internet }
func (r *CheckResult) Bus() bool      { return r.bus }
func (r *CheckResult) Changed() bool  { return r.changed }

// String returns the bitmap without touching the changed flag.
func (r CheckResult) String() string {
	return string([]byte{flag(r.ip), flag(r.internet), flag(r.bus)})
}

// Render returns the bitmap and clears the changed flag.
func (r *CheckResult) Render() string {
	r.changed = false
	return r.String()
}

func flag(v bool) byte {
	if v {
		return FlagSet
	}
	return FlagUnset
}
