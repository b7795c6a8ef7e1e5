package license

import (
	"context"
	"fmt"
	"time"

	"amulet-controlplane/pkg/db/option"
	"amulet-controlplane/pkg/errutil"
	"amulet-controlplane/services/activity"

	"gorm.io/gorm"
)

// Device-facing operations keyed by the license key rather than the id.
// These back the public console dispatcher; they share the same lock and
// audit discipline as the admin mutations.

// CheckDevice validates a key/mac pair. A license with no device binding
// is bound to the presented mac on first use.
func (s *Service) CheckDevice(ctx context.Context, key, macID string) (*License, error) {
	if key == "" || macID == "" {
		return nil, errutil.ValidationFailed("key and mac_id are required")
	}

	var out *License
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{Key: key}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("invalid license key")
		}
		if !lic.Active {
			return errutil.Forbidden("license is deactivated")
		}

		if lic.MacID == nil {
			updates := map[string]any{
				"mac_id":     macID,
				"updated_at": time.Now().UTC(),
			}
			if err := repo.Update(ctx, lic.ID, updates); err != nil {
				return errutil.Internal("failed to bind device", errutil.WithErr(err))
			}
			lic.MacID = &macID

			_, err = s.recorder.Record(ctx, tx, activity.Entry{
				LicenseID: &lic.ID,
				Action:    activity.ActionUpdate,
				Details:   fmt.Sprintf("bound device %s", macID),
			})
			if err != nil {
				return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
			}
		} else if *lic.MacID != macID {
			return errutil.Forbidden("license is bound to another device")
		}

		out = lic
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Debit charges amount characters against the key's balance and returns the
// remaining credit. The license must be active and bound to the presented mac.
func (s *Service) Debit(ctx context.Context, key, macID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errutil.InvalidOperation("amount must be positive")
	}

	var balance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{Key: key}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("invalid license key")
		}
		if !lic.Active {
			return errutil.Forbidden("license is deactivated")
		}
		if lic.MacID == nil || *lic.MacID != macID {
			return errutil.Forbidden("license is bound to another device")
		}
		if lic.Credit < amount {
			// the remaining balance still reaches the caller on this path
			balance = lic.Credit
			return errutil.InvalidOperation(fmt.Sprintf("insufficient credit (balance=%d, amount=%d)", lic.Credit, amount))
		}

		balance = lic.Credit - amount
		updates := map[string]any{
			"credit":     balance,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.Update(ctx, lic.ID, updates); err != nil {
			return errutil.Internal("failed to debit credit", errutil.WithErr(err))
		}

		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionDebit,
			CharCount: &amount,
			Details:   fmt.Sprintf("debit=%d balance=%d", amount, balance),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return balance, err
	}
	return balance, nil
}

// Refund returns amount characters to the key's balance. The caller must
// present the bound device, but refunds are accepted even on deactivated
// licenses so a failed synthesis can always be compensated.
func (s *Service) Refund(ctx context.Context, key, macID string, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, errutil.InvalidOperation("amount must be positive")
	}

	var balance int64
	err := s.db.Transaction(func(tx *gorm.DB) error {
		repo := s.licenses.WithTrx(tx)

		lic, err := repo.FindOne(ctx, &License{Key: key}, option.WithLockingUpdate())
		if err != nil {
			return errutil.Internal("failed to load license", errutil.WithErr(err))
		}
		if lic == nil {
			return errutil.NotFound("invalid license key")
		}
		if lic.MacID == nil || *lic.MacID != macID {
			return errutil.Forbidden("license is bound to another device")
		}

		balance = lic.Credit + amount
		updates := map[string]any{
			"credit":     balance,
			"updated_at": time.Now().UTC(),
		}
		if err := repo.Update(ctx, lic.ID, updates); err != nil {
			return errutil.Internal("failed to refund credit", errutil.WithErr(err))
		}

		_, err = s.recorder.Record(ctx, tx, activity.Entry{
			LicenseID: &lic.ID,
			Action:    activity.ActionRefund,
			CharCount: &amount,
			Details:   fmt.Sprintf("refund=%d balance=%d", amount, balance),
		})
		if err != nil {
			return errutil.Internal("failed to record audit entry", errutil.WithErr(err))
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return balance, nil
}
