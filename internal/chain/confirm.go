package chain

import (
	"context"
	"fmt"
	"time"
)

// AwaitConfirmation polls the status of signature every poll interval until
// it is confirmed, fails, or timeout elapses. Lookup errors are treated as
// transient and polling continues. On timeout or cancellation the outcome is
// unknown and ErrConfirmationTimeout is returned; callers must not assume the
// transfer failed.
func AwaitConfirmation(ctx context.Context, c StatusReader, signature string, timeout, poll time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	for {
		status, err := c.SignatureStatus(ctx, signature)
		if err == nil {
			switch status {
			case TxStatusConfirmed:
				return nil
			case TxStatusFailed:
				return fmt.Errorf("%w: %s", ErrTransactionFailed, signature)
			}
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w after %s: %s", ErrConfirmationTimeout, timeout, signature)
		case <-ticker.C:
		}
	}
}
