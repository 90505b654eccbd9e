package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/Pesokrava/review_service/internal/config"
	"github.com/Pesokrava/review_service/internal/pkg/logger"
	"github.com/Pesokrava/review_service/internal/transport"
)

// App ids of the sibling services reached through the sidecar
const (
	catalogAppID = "catalog-service"
	orderAppID   = "order-service"
)

type existsResponse struct {
	Exists bool `json:"exists"`
}

type verifyPurchaseRequest struct {
	UserID    string `json:"userId"`
	ProductID string `json:"productId"`
	OrderID   string `json:"orderId"`
}

type verifyPurchaseResponse struct {
	Valid bool `json:"valid"`
}

// SidecarVerifier answers product-existence and purchase-validation checks
// over the local sidecar's service-invocation channel.
type SidecarVerifier struct {
	invoker transport.ServiceInvoker
	logger  *logger.Logger
}

// NewSidecarVerifier creates a verifier backed by the sidecar invoker
func NewSidecarVerifier(invoker transport.ServiceInvoker, log *logger.Logger) *SidecarVerifier {
	return &SidecarVerifier{
		invoker: invoker,
		logger:  log,
	}
}

// ProductExists asks the catalog service whether the product is known
func (v *SidecarVerifier) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	body, _ := json.Marshal(map[string]string{"productId": productID.String()})

	data, err := v.invoker.Invoke(ctx, catalogAppID, "products/exists", body)
	if err != nil {
		return false, err
	}

	var resp existsResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("invalid existence response: %w", err)
	}

	return resp.Exists, nil
}

// VerifyPurchase asks the order service whether the order backs a purchase
// of the product by the user
func (v *SidecarVerifier) VerifyPurchase(ctx context.Context, userID, productID uuid.UUID, orderID string) (bool, error) {
	body, _ := json.Marshal(verifyPurchaseRequest{
		UserID:    userID.String(),
		ProductID: productID.String(),
		OrderID:   orderID,
	})

	data, err := v.invoker.Invoke(ctx, orderAppID, "orders/verify", body)
	if err != nil {
		return false, err
	}

	var resp verifyPurchaseResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return false, fmt.Errorf("invalid purchase response: %w", err)
	}

	return resp.Valid, nil
}

// HTTPVerifier answers the same checks over direct HTTP to the sibling
// services, for deployments without a sidecar. Request timeouts are bounded
// by the client so a slow dependency cannot stall review creation.
type HTTPVerifier struct {
	catalogURL string
	orderURL   string
	client     *http.Client
	logger     *logger.Logger
}

// NewHTTPVerifier creates a verifier calling sibling services directly
func NewHTTPVerifier(cfg *config.Config, log *logger.Logger) *HTTPVerifier {
	return &HTTPVerifier{
		catalogURL: cfg.Clients.CatalogURL,
		orderURL:   cfg.Clients.OrderURL,
		client:     &http.Client{Timeout: cfg.Clients.Timeout},
		logger:     log,
	}
}

// ProductExists asks the catalog service whether the product is known
func (v *HTTPVerifier) ProductExists(ctx context.Context, productID uuid.UUID) (bool, error) {
	url := fmt.Sprintf("%s/api/v1/products/%s/exists", v.catalogURL, productID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false, err
	}

	var resp existsResponse
	if err := v.doJSON(req, &resp); err != nil {
		return false, err
	}

	return resp.Exists, nil
}

// VerifyPurchase asks the order service whether the order backs a purchase
// of the product by the user
func (v *HTTPVerifier) VerifyPurchase(ctx context.Context, userID, productID uuid.UUID, orderID string) (bool, error) {
	body, _ := json.Marshal(verifyPurchaseRequest{
		UserID:    userID.String(),
		ProductID: productID.String(),
		OrderID:   orderID,
	})

	url := fmt.Sprintf("%s/api/v1/orders/verify", v.orderURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp verifyPurchaseResponse
	if err := v.doJSON(req, &resp); err != nil {
		return false, err
	}

	return resp.Valid, nil
}

func (v *HTTPVerifier) doJSON(req *http.Request, out interface{}) error {
	resp, err := v.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%s returned status %d", req.URL.Host, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}
