package dispatch

import "context"

// Serial executes units synchronously, in order, on the calling goroutine.
// The first failure aborts the remaining units and is returned as is.
type Serial struct{}

func NewSerial() *Serial { return &Serial{} }

func (*Serial) Init(context.Context) error { return nil }

func (*Serial) Execute(ctx context.Context, units []Unit) error {
	for _, u := range units {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := runUnit(u); err != nil {
			return err
		}
	}
	return nil
}

func (*Serial) Destroy() {}

func (*Serial) Concurrent() bool { return false }
