package clip

import "context"

// headlessDevice stands in when there is no display server. Reads and
// writes fail with ErrUnavailable so the HTTP endpoint reports a server
// error instead of pretending the copy happened.
type headlessDevice struct{}

func (d *headlessDevice) Name() string { return "headless (unavailable)" }

func (d *headlessDevice) ReadText() (string, error) {
	return "", &DeviceError{Op: "read", Err: ErrUnavailable}
}

func (d *headlessDevice) WriteText(string) error {
	return &DeviceError{Op: "write", Err: ErrUnavailable}
}

func (d *headlessDevice) Changes(context.Context) <-chan string { return nil }
func (d *headlessDevice) Close()                                {}
