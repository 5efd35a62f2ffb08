package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/firestore"

	domain "github.com/roastline/api/internal/domain"
	pfirestore "github.com/roastline/api/internal/platform/firestore"
	"github.com/roastline/api/internal/repositories"
)

const (
	coffeeVariantsCollection = "coffeeVariants"
	coffeesCollection        = "coffees"
	equipmentCollection      = "equipment"
)

// CatalogRepository is the price oracle. An item id resolves against coffee
// variants first, then coffees, then equipment by id, then equipment by slug.
type CatalogRepository struct {
	variants  *pfirestore.BaseRepository[coffeeVariantDocument]
	coffees   *pfirestore.BaseRepository[coffeeDocument]
	equipment *pfirestore.BaseRepository[equipmentDocument]
	currency  string
}

// NewCatalogRepository constructs the Firestore-backed catalog repository.
// All prices in the catalog collections are stored in minor units of the
// given currency.
func NewCatalogRepository(provider *pfirestore.Provider, currency string) (*CatalogRepository, error) {
	if provider == nil {
		return nil, errors.New("catalog repository requires firestore provider")
	}
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return nil, errors.New("catalog repository requires a currency")
	}
	return &CatalogRepository{
		variants:  pfirestore.NewBaseRepository[coffeeVariantDocument](provider, coffeeVariantsCollection, nil),
		coffees:   pfirestore.NewBaseRepository[coffeeDocument](provider, coffeesCollection, nil),
		equipment: pfirestore.NewBaseRepository[equipmentDocument](provider, equipmentCollection, nil),
		currency:  currency,
	}, nil
}

type coffeeVariantDocument struct {
	CoffeeID string `firestore:"coffeeId"`
	Name     string `firestore:"name"`
	BagSize  string `firestore:"bagSize,omitempty"`
	Grind    string `firestore:"grind,omitempty"`
	Price    int64  `firestore:"price"`
	Stock    int    `firestore:"stock"`
}

type coffeeDocument struct {
	Name  string `firestore:"name"`
	Slug  string `firestore:"slug"`
	Price int64  `firestore:"price"`
	Stock int    `firestore:"stock"`
}

type equipmentDocument struct {
	Name  string `firestore:"name"`
	Slug  string `firestore:"slug"`
	Price int64  `firestore:"price"`
	Stock int    `firestore:"stock"`
}

// ResolveItem finds the catalog record backing a cart item id.
func (r *CatalogRepository) ResolveItem(ctx context.Context, itemID string) (domain.CatalogItem, error) {
	id := strings.TrimSpace(itemID)
	if id == "" {
		return domain.CatalogItem{}, pfirestore.NewNotFound("catalog.resolve", errors.New("catalog: item id is required"))
	}

	if doc, err := r.variants.Get(ctx, id); err == nil {
		return domain.CatalogItem{
			ID:     doc.ID,
			Name:   doc.Data.Name,
			Price:  domain.Money{MinorUnits: doc.Data.Price, Currency: r.currency},
			Stock:  doc.Data.Stock,
			Source: domain.CatalogCoffeeVariant,
		}, nil
	} else if !isNotFound(err) {
		return domain.CatalogItem{}, err
	}

	if doc, err := r.coffees.Get(ctx, id); err == nil {
		return domain.CatalogItem{
			ID:     doc.ID,
			Slug:   doc.Data.Slug,
			Name:   doc.Data.Name,
			Price:  domain.Money{MinorUnits: doc.Data.Price, Currency: r.currency},
			Stock:  doc.Data.Stock,
			Source: domain.CatalogCoffee,
		}, nil
	} else if !isNotFound(err) {
		return domain.CatalogItem{}, err
	}

	if doc, err := r.equipment.Get(ctx, id); err == nil {
		return equipmentItem(doc.ID, doc.Data, r.currency), nil
	} else if !isNotFound(err) {
		return domain.CatalogItem{}, err
	}

	docs, err := r.equipment.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("slug", "==", id).Limit(1)
	})
	if err != nil {
		return domain.CatalogItem{}, err
	}
	if len(docs) == 0 {
		return domain.CatalogItem{}, pfirestore.NewNotFound("catalog.resolve", fmt.Errorf("catalog: item %s not found", id))
	}
	return equipmentItem(docs[0].ID, docs[0].Data, r.currency), nil
}

func equipmentItem(id string, doc equipmentDocument, currency string) domain.CatalogItem {
	return domain.CatalogItem{
		ID:     id,
		Slug:   doc.Slug,
		Name:   doc.Name,
		Price:  domain.Money{MinorUnits: doc.Price, Currency: currency},
		Stock:  doc.Stock,
		Source: domain.CatalogEquipment,
	}
}

func isNotFound(err error) bool {
	var repoErr repositories.RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}
