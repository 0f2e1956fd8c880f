package navigation

// Links builds handoff URLs between the wizard and the dashboard.
type Links struct {
	codec     *Codec
	wizard    string
	dashboard string
}

// NewLinks binds codec to the two UIs' base URLs.
func NewLinks(codec *Codec, wizardURL, dashboardURL string) *Links {
	return &Links{codec: codec, wizard: wizardURL, dashboard: dashboardURL}
}

// WizardLink sends the user to the wizard with ctx.
func (l *Links) WizardLink(ctx Context) (string, error) {
	return l.codec.Encode(l.wizard, ctx)
}

// DashboardLink sends the user back to the dashboard with ctx.
func (l *Links) DashboardLink(ctx Context) (string, error) {
	return l.codec.Encode(l.dashboard, ctx)
}
