// Package services enthält die Workflow-Schicht zwischen Referenzmanager,
// Publikationsquellen und Transport.
package services

import (
	"context"

	"refdesk/models"
	"refdesk/zotero"
)

// Library ist der Ausschnitt des Referenzmanager-Clients, den die
// Workflow-Schicht benötigt. *zotero.Client erfüllt das Interface.
type Library interface {
	SearchItems(ctx context.Context, query string, limit int) []models.Item
	GetItem(ctx context.Context, itemKey string) (*models.Item, error)
	ListCollections(ctx context.Context) []models.Collection
	CollectionItems(ctx context.Context, collectionKey string) []models.Item
	SearchByTag(ctx context.Context, tag string) []models.Item
	SemanticSearch(ctx context.Context, query string, limit int) []models.Item
	CreateCollection(ctx context.Context, name, parentKey string) (string, error)
	CreateItem(ctx context.Context, item map[string]any) (string, error)
	AddItemsToCollection(ctx context.Context, collectionKey string, itemKeys []string) *zotero.AddResult
}

var _ Library = (*zotero.Client)(nil)
