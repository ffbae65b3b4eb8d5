package validators

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/zerohunger/zerohunger-backend/pkg/errors"
)

type pickupBody struct {
	PickupCode string   `json:"pickup_code" validate:"required,len=6,numeric"`
	Latitude   *float64 `json:"latitude" validate:"omitempty,latitude"`
}

func TestDecodeJSONBodyMalformedIsBadRequest(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pickup_code":`))
	var body pickupBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest), "got %v", err)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pickup_code":"123456","extra":1}`))
	var body pickupBody
	require.True(t, pkgerrors.Is(DecodeJSONBody(req, &body), pkgerrors.CodeBadRequest))
}

func TestDecodeJSONBodyValidationDetails(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pickup_code":"12a4","latitude":91}`))
	var body pickupBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Equal(t, "must be exactly 6 characters", details["pickup_code"])
	require.Equal(t, "must be between -90 and 90", details["latitude"])
}

func TestDecodeJSONBodyAccepts(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pickup_code":"004217"}`))
	var body pickupBody
	require.NoError(t, DecodeJSONBody(req, &body))
	require.Equal(t, "004217", body.PickupCode)
}

func TestDecodeOptionalJSONBodyAllowsEmpty(t *testing.T) {
	type notesBody struct {
		Notes *string `json:"notes" validate:"omitempty,max=500"`
	}
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var body notesBody
	require.NoError(t, DecodeOptionalJSONBody(req, &body))
	require.Nil(t, body.Notes)
}

func TestRequireQueryFloat(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?latitude=30.04&longitude=abc", nil)

	lat, err := RequireQueryFloat(req, "latitude", -90, 90)
	require.NoError(t, err)
	require.InDelta(t, 30.04, lat, 1e-9)

	_, err = RequireQueryFloat(req, "longitude", -180, 180)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))

	_, err = RequireQueryFloat(req, "radius", 0, 500)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))

	outOfRange := httptest.NewRequest(http.MethodGet, "/?latitude=120", nil)
	_, err = RequireQueryFloat(outOfRange, "latitude", -90, 90)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestParseQueryInt(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/?limit=5", nil)
	v, err := ParseQueryInt(req, "limit", 10, 1, 50)
	require.NoError(t, err)
	require.Equal(t, 5, v)

	v, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/", nil), "limit", 10, 1, 50)
	require.NoError(t, err)
	require.Equal(t, 10, v)

	_, err = ParseQueryInt(httptest.NewRequest(http.MethodGet, "/?limit=500", nil), "limit", 10, 1, 50)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyRejectsTrailingData(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"pickup_code":"123456"}{"pickup_code":"654321"}`))
	var body pickupBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest), "got %v", err)
}

func TestDecodeJSONBodyRejectsOversizedBody(t *testing.T) {
	padding := strings.Repeat(" ", MaxBodyBytes)
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(padding+`{"pickup_code":"123456"}`))
	var body pickupBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	require.Equal(t, "request body too large", pkgerrors.As(err).Message())
}

func TestDecodeJSONBodyRequiresBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	var body pickupBody
	err := DecodeJSONBody(req, &body)
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeBadRequest))
	require.Equal(t, "request body required", pkgerrors.As(err).Message())
}
