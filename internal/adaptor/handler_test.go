package adaptor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"visitor-booking/internal/data/entity"
	"visitor-booking/internal/dto/request"
	"visitor-booking/internal/dto/response"
	"visitor-booking/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// ---------- Stubs ----------

// Embedding the interface keeps the stubs short; any call that is not
// overridden panics and fails the test.
type stubBookingService struct {
	usecase.BookingService
	confirm func(id string) (*response.BookingResponse, error)
	cancel  func(id string, req *request.CancelBookingRequest) (*response.BookingResponse, error)
}

func (s *stubBookingService) ConfirmBooking(_ context.Context, _ *uuid.UUID, id string) (*response.BookingResponse, error) {
	return s.confirm(id)
}

func (s *stubBookingService) CancelBooking(_ context.Context, _ *uuid.UUID, id string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
	return s.cancel(id, req)
}

type stubPublicService struct {
	usecase.PublicBookingService
	create func(req *request.PublicBookingRequest) (*response.PublicBookingResponse, error)
}

func (s *stubPublicService) CreatePublicBooking(_ context.Context, req *request.PublicBookingRequest) (*response.PublicBookingResponse, error) {
	return s.create(req)
}

type body struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Code    string          `json:"code"`
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors"`
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) body {
	t.Helper()
	var b body
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&b))
	return b
}

// ---------- Error mapping ----------

func TestWriteServiceError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantKind string
	}{
		{"capacity", &usecase.CapacityExceededError{Available: 2, Requested: 3}, http.StatusConflict, "CapacityExceeded"},
		{"conflict", &usecase.ScheduleConflictError{ConflictingSlotID: uuid.New()}, http.StatusConflict, "ScheduleConflict"},
		{"unavailable", usecase.ErrSlotUnavailable, http.StatusConflict, "SlotUnavailable"},
		{"immutable", usecase.ErrBookingImmutable, http.StatusConflict, "BookingImmutable"},
		{"wrapped not found", fmt.Errorf("lookup: %w", usecase.ErrBookingNotFound), http.StatusNotFound, "BookingNotFound"},
		{"slot not found", usecase.ErrSlotNotFound, http.StatusNotFound, "SlotNotFound"},
		{"reason", usecase.ErrCancellationReasonRequired, http.StatusUnprocessableEntity, "CancellationReasonRequired"},
		{"range", usecase.ErrInvalidTimeRange, http.StatusUnprocessableEntity, "InvalidTimeRange"},
		{"internal", fmt.Errorf("db down"), http.StatusInternalServerError, "Internal"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			writeServiceError(rec, zap.NewNop(), tt.err, "test")

			assert.Equal(t, tt.wantCode, rec.Code)
			b := decodeBody(t, rec)
			assert.False(t, b.Status)
			assert.Equal(t, tt.wantKind, b.Code)
			if tt.wantCode == http.StatusInternalServerError {
				assert.Equal(t, "Internal server error", b.Message)
			}
		})
	}
}

func TestWriteServiceError_CapacityDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	writeServiceError(rec, zap.NewNop(), fmt.Errorf("create: %w", &usecase.CapacityExceededError{Available: 2, Requested: 5}), "test")

	var details map[string]int
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Errors, &details))
	assert.Equal(t, map[string]int{"available": 2, "requested": 5}, details)
}

// ---------- Handlers ----------

func bookingRouter(svc usecase.BookingService) http.Handler {
	h := NewBookingHandler(svc, zap.NewNop())
	r := chi.NewRouter()
	r.Post("/api/bookings/{id}/confirm", h.ConfirmBooking)
	r.Post("/api/bookings/{id}/cancel", h.CancelBooking)
	return r
}

func TestBookingHandler_Confirm(t *testing.T) {
	id := uuid.NewString()
	svc := &stubBookingService{
		confirm: func(got string) (*response.BookingResponse, error) {
			if got != id {
				return nil, usecase.ErrBookingNotFound
			}
			return &response.BookingResponse{ID: id, Status: entity.BookingStatusConfirmed}, nil
		},
	}
	router := bookingRouter(svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/"+id+"/confirm", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var data response.BookingResponse
	require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &data))
	assert.Equal(t, entity.BookingStatusConfirmed, data.Status)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/bookings/"+uuid.NewString()+"/confirm", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestBookingHandler_CancelPassesReason(t *testing.T) {
	var gotReason string
	svc := &stubBookingService{
		cancel: func(id string, req *request.CancelBookingRequest) (*response.BookingResponse, error) {
			gotReason = req.Reason
			if req.Reason == "" {
				return nil, usecase.ErrCancellationReasonRequired
			}
			return &response.BookingResponse{ID: id, Status: entity.BookingStatusCancelled}, nil
		},
	}
	router := bookingRouter(svc)
	url := "/api/bookings/" + uuid.NewString() + "/cancel"

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"reason":"weather"}`)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "weather", gotReason)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{}`)))
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "CancellationReasonRequired", decodeBody(t, rec).Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, url, strings.NewReader(`{"reason":`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicBookingHandler_Create(t *testing.T) {
	svc := &stubPublicService{
		create: func(req *request.PublicBookingRequest) (*response.PublicBookingResponse, error) {
			if req.GroupSize > 4 {
				return nil, &usecase.CapacityExceededError{Available: 4, Requested: req.GroupSize}
			}
			return &response.PublicBookingResponse{
				ID:            uuid.NewString(),
				TrackingToken: "ABCDEFGHJKMN",
				Status:        entity.BookingStatusTentative,
				GroupSize:     req.GroupSize,
			}, nil
		},
	}
	h := NewPublicBookingHandler(svc, zap.NewNop())
	slotID := uuid.NewString()

	t.Run("created", func(t *testing.T) {
		payload := fmt.Sprintf(`{"slot_id":%q,"name":"Ana","email":"ana@example.com","group_size":2}`, slotID)
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, httptest.NewRequest(http.MethodPost, "/api/public/bookings", strings.NewReader(payload)))

		require.Equal(t, http.StatusCreated, rec.Code)
		var data response.PublicBookingResponse
		require.NoError(t, json.Unmarshal(decodeBody(t, rec).Data, &data))
		assert.Equal(t, "ABCDEFGHJKMN", data.TrackingToken)
	})

	t.Run("validation", func(t *testing.T) {
		payload := fmt.Sprintf(`{"slot_id":%q,"name":"Ana","email":"not-an-email","group_size":0}`, slotID)
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, httptest.NewRequest(http.MethodPost, "/api/public/bookings", strings.NewReader(payload)))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		b := decodeBody(t, rec)
		assert.Equal(t, "ValidationFailed", b.Code)

		var fields map[string]string
		require.NoError(t, json.Unmarshal(b.Errors, &fields))
		assert.Contains(t, fields, "Email")
		assert.Contains(t, fields, "GroupSize")
	})

	t.Run("capacity", func(t *testing.T) {
		payload := fmt.Sprintf(`{"slot_id":%q,"name":"Ana","email":"ana@example.com","group_size":9}`, slotID)
		rec := httptest.NewRecorder()
		h.CreateBooking(rec, httptest.NewRequest(http.MethodPost, "/api/public/bookings", strings.NewReader(payload)))

		assert.Equal(t, http.StatusConflict, rec.Code)
		assert.Equal(t, "CapacityExceeded", decodeBody(t, rec).Code)
	})
}
