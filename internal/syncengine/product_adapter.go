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

// ProductAdapter syncs marketplace offers into the products table.
type ProductAdapter struct {
	Store repository.Store
}

func (a *ProductAdapter) Resource() marketplace.Resource {
	return marketplace.ResourceProducts
}

func (a *ProductAdapter) LocalOnly() []string {
	return []string{"internal_notes"}
}

func (a *ProductAdapter) Decode(rec marketplace.Record, accountScope string, fetchedAt time.Time) (RemoteRecord, error) {
	sku, err := requireString(rec.Body, "sku")
	if err != nil {
		return RemoteRecord{}, err
	}
	title, err := requireString(rec.Body, "title")
	if err != nil {
		return RemoteRecord{}, err
	}
	price, err := requireMoney(rec.Body, "price")
	if err != nil {
		return RemoteRecord{}, err
	}
	return RemoteRecord{
		RemoteID:     rec.RemoteID,
		AccountScope: accountScope,
		UpdatedAt:    rec.UpdatedAt,
		FetchedAt:    fetchedAt,
		Raw:          rec.Raw,
		Fields: map[string]FieldValue{
			"sku":       Field(sku),
			"title":     Field(title),
			"price":     Field(price),
			"stock_qty": optionalNumber(rec.Body, "stock_qty"),
			"active":    optionalBool(rec.Body, "active"),
		},
	}, nil
}

func (a *ProductAdapter) LoadLocal(ctx context.Context, accountScope string, remoteIDs []string) (map[string]LocalView, error) {
	products, err := a.Store.FindProductsByRemoteIDs(ctx, accountScope, remoteIDs)
	if err != nil {
		return nil, err
	}
	views := make(map[string]LocalView, len(products))
	for _, p := range products {
		view := LocalView{
			Exists:     true,
			UpdatedAt:  p.UpdatedAt,
			SyncStatus: p.SyncStatus,
			Fields: map[string]FieldValue{
				"sku":       Field(p.SKU),
				"title":     Field(p.Title),
				"price":     Field(p.Price.String()),
				"stock_qty": Field(float64(p.StockQty)),
				"active":    Field(p.Active),
			},
		}
		if p.InternalNotes != nil {
			view.Fields["internal_notes"] = Field(*p.InternalNotes)
		} else {
			view.Fields["internal_notes"] = MissingField()
		}
		views[p.RemoteID] = view
	}
	return views, nil
}

func (a *ProductAdapter) Apply(tx *gorm.DB, runID, accountScope string, remote RemoteRecord, decision Decision) error {
	switch decision.Action {
	case ActionCreate:
		product := models.Product{
			RemoteID:        remote.RemoteID,
			AccountScope:    accountScope,
			SyncStatus:      models.SyncStatusSynced,
			LastSyncRunID:   &runID,
			RemoteUpdatedAt: remote.UpdatedAt,
			RawJSON:         datatypes.JSON(remote.Raw),
			FetchedAt:       &remote.FetchedAt,
		}
		if sku, ok := mergedString(decision, "sku"); ok {
			product.SKU = sku
		}
		if title, ok := mergedString(decision, "title"); ok {
			product.Title = title
		}
		if price, ok := mergedMoney(decision, "price"); ok {
			product.Price = price
		}
		if stock, ok := mergedInt(decision, "stock_qty"); ok {
			product.StockQty = stock
		}
		if active, ok := mergedBool(decision, "active"); ok {
			product.Active = active
		} else {
			product.Active = true
		}
		return tx.Create(&product).Error
	case ActionUpdate:
		updates := map[string]any{
			"sync_status":       models.SyncStatusSynced,
			"last_sync_run_id":  runID,
			"remote_updated_at": remote.UpdatedAt,
			"raw_json":          datatypes.JSON(remote.Raw),
			"fetched_at":        remote.FetchedAt,
		}
		if sku, ok := mergedString(decision, "sku"); ok {
			updates["sku"] = sku
		}
		if title, ok := mergedString(decision, "title"); ok {
			updates["title"] = title
		}
		if price, ok := mergedMoney(decision, "price"); ok {
			updates["price"] = price
		}
		if stock, ok := mergedInt(decision, "stock_qty"); ok {
			updates["stock_qty"] = stock
		}
		if active, ok := mergedBool(decision, "active"); ok {
			updates["active"] = active
		}
		return tx.Model(&models.Product{}).
			Where("remote_id = ? AND account_scope = ?", remote.RemoteID, accountScope).
			Updates(updates).Error
	case ActionManual:
		return tx.Model(&models.Product{}).
			Where("remote_id = ? AND account_scope = ?", remote.RemoteID, accountScope).
			Updates(map[string]any{
				"sync_status":      models.SyncStatusConflict,
				"last_sync_run_id": runID,
			}).Error
	default:
		return nil
	}
}
