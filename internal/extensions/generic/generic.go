package generic

// Extension is a no-op placeholder enabled when nothing else is configured.
type Extension struct{}

// New returns a generic extension instance.
func New() *Extension { return &Extension{} }

func (Extension) Name() string { return "generic" }
