// Package providers implements one Client per supplier kind. Each client
// performs its supplier's request and maps the reply onto models.Offer; the
// orchestrator never sees supplier-specific shapes.
package providers

//go:generate mockgen -source=provider.go -destination=mocks/mocks.go -package=mocks Client

import (
	"context"

	"github.com/dharmasatrya/airsearch/internal/models"
)

// Client is the capability every supplier offers. Every method honours ctx,
// returns *models.Error on failure, and never returns a partially normalized
// offer.
type Client interface {
	Code() string
	Search(ctx context.Context, q models.SearchQuery) ([]models.Offer, error)
	GetOfferDetails(ctx context.Context, reference string) (models.Offer, error)
	PriceOffer(ctx context.Context, reference string) (models.Price, error)
}

// Restorer is a Client that resolves references from state held in process.
// Such references can outlive that state while a result set holding them is
// still cached; Restore re-admits an offer the client returned earlier from
// its Metadata.
type Restorer interface {
	Client
	// SearchFingerprint returns the fingerprint of the search that issued
	// reference.
	SearchFingerprint(reference string) (string, bool)
	Restore(offer models.Offer) error
}

// validateAll turns any invalid offer into a normalization error for the whole
// response.
func validateAll(code string, offers []models.Offer) error {
	for _, o := range offers {
		if err := o.Validate(); err != nil {
			return models.WrapError(models.KindNormalization, code, err)
		}
	}
	return nil
}
