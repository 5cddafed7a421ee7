package interfaces

import (
	"context"
	"time"
)

type EodSummarizer interface {
	SummarizeDay(ctx context.Context, day time.Time) (csvPath string, err error)
	// Pending returns the previous UTC day and whether its summary is still to be written.
	Pending(now time.Time) (day time.Time, ok bool)
}
