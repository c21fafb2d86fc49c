package panel

// CloseAfterSuccessMillis is how long a modal stays open after a successful submit.
const CloseAfterSuccessMillis = 2000

// SubmitControl describes a modal's submit button. BusyLabel is applied by the page while
// the request is in flight; the rendered control is always enabled with Label.
type SubmitControl struct {
	Label     string
	BusyLabel string
}

// Banners holds the mutually exclusive outcome messages of a modal submit.
type Banners struct {
	Success string
	Error   string
}
