package syncengine

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"marketsync/internal/client/marketplace"
	"marketsync/internal/models"
	"marketsync/internal/repository"
)

// OrderAdapter syncs marketplace orders into the orders table.
type OrderAdapter struct {
	Store repository.Store
}

func (a *OrderAdapter) Resource() marketplace.Resource {
	return marketplace.ResourceOrders
}

func (a *OrderAdapter) LocalOnly() []string {
	return []string{"internal_note", "picked"}
}

func (a *OrderAdapter) Decode(rec marketplace.Record, accountScope string, fetchedAt time.Time) (RemoteRecord, error) {
	status, err := requireString(rec.Body, "status")
	if err != nil {
		return RemoteRecord{}, err
	}
	total, err := requireMoney(rec.Body, "total")
	if err != nil {
		return RemoteRecord{}, err
	}
	fields := map[string]FieldValue{
		"status":      Field(status),
		"total":       Field(total),
		"buyer_email": optionalString(rec.Body, "buyer_email"),
		"placed_at":   MissingField(),
	}
	if raw, ok := rec.Body["placed_at"].(string); ok {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			fields["placed_at"] = Field(parsed.UTC().Format(time.RFC3339))
		}
	}
	return RemoteRecord{
		RemoteID:     rec.RemoteID,
		AccountScope: accountScope,
		UpdatedAt:    rec.UpdatedAt,
		FetchedAt:    fetchedAt,
		Raw:          rec.Raw,
		Fields:       fields,
	}, nil
}

func (a *OrderAdapter) LoadLocal(ctx context.Context, accountScope string, remoteIDs []string) (map[string]LocalView, error) {
	orders, err := a.Store.FindOrdersByRemoteIDs(ctx, accountScope, remoteIDs)
	if err != nil {
		return nil, err
	}
	views := make(map[string]LocalView, len(orders))
	for _, o := range orders {
		view := LocalView{
			Exists:     true,
			UpdatedAt:  o.UpdatedAt,
			SyncStatus: o.SyncStatus,
			Fields: map[string]FieldValue{
				"status":      Field(o.Status),
				"total":       Field(o.Total.String()),
				"buyer_email": Field(o.BuyerEmail),
				"picked":      Field(o.Picked),
			},
		}
		if o.PlacedAt != nil {
			view.Fields["placed_at"] = Field(o.PlacedAt.UTC().Format(time.RFC3339))
		} else {
			view.Fields["placed_at"] = MissingField()
		}
		if o.InternalNote != nil {
			view.Fields["internal_note"] = Field(*o.InternalNote)
		} else {
			view.Fields["internal_note"] = MissingField()
		}
		views[o.RemoteID] = view
	}
	return views, nil
}

func (a *OrderAdapter) Apply(tx *gorm.DB, runID, accountScope string, remote RemoteRecord, decision Decision) error {
	switch decision.Action {
	case ActionCreate:
		order := models.Order{
			RemoteID:        remote.RemoteID,
			AccountScope:    accountScope,
			SyncStatus:      models.SyncStatusSynced,
			LastSyncRunID:   &runID,
			RemoteUpdatedAt: remote.UpdatedAt,
			RawJSON:         datatypes.JSON(remote.Raw),
			FetchedAt:       &remote.FetchedAt,
		}
		if status, ok := mergedString(decision, "status"); ok {
			order.Status = status
		}
		if total, ok := mergedMoney(decision, "total"); ok {
			order.Total = total
		}
		if email, ok := mergedString(decision, "buyer_email"); ok {
			order.BuyerEmail = email
		}
		if placedAt, ok := mergedString(decision, "placed_at"); ok {
			if parsed, err := time.Parse(time.RFC3339, placedAt); err == nil {
				utc := parsed.UTC()
				order.PlacedAt = &utc
			}
		}
		return tx.Create(&order).Error
	case ActionUpdate:
		updates := map[string]any{
			"sync_status":       models.SyncStatusSynced,
			"last_sync_run_id":  runID,
			"remote_updated_at": remote.UpdatedAt,
			"raw_json":          datatypes.JSON(remote.Raw),
			"fetched_at":        remote.FetchedAt,
		}
		if status, ok := mergedString(decision, "status"); ok {
			updates["status"] = status
		}
		if total, ok := mergedMoney(decision, "total"); ok {
			updates["total"] = total
		}
		if email, ok := mergedString(decision, "buyer_email"); ok {
			updates["buyer_email"] = email
		}
		if placedAt, ok := mergedString(decision, "placed_at"); ok {
			if parsed, err := time.Parse(time.RFC3339, placedAt); err == nil {
				updates["placed_at"] = parsed.UTC()
			}
		}
		return tx.Model(&models.Order{}).
			Where("remote_id = ? AND account_scope = ?", remote.RemoteID, accountScope).
			Updates(updates).Error
	case ActionManual:
		return tx.Model(&models.Order{}).
			Where("remote_id = ? AND account_scope = ?", remote.RemoteID, accountScope).
			Updates(map[string]any{
				"sync_status":      models.SyncStatusConflict,
				"last_sync_run_id": runID,
			}).Error
	default:
		return nil
	}
}
