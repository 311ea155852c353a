package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"gatepass/internal/assets"
	"gatepass/internal/credential/service"
	"gatepass/internal/credential/store"
	"gatepass/internal/directory"
	"gatepass/internal/gate"
	"gatepass/internal/gatelog"
	jwttoken "gatepass/internal/jwt_token"
	id "gatepass/pkg/domain"
)

type HandlerSuite struct {
	suite.Suite
	router   chi.Router
	jwt      *jwttoken.JWTService
	registry *gate.InMemory
	renderer *assets.InMemoryRenderer
	scanLog  *gatelog.InMemory

	residentID uuid.UUID
	societyID  uuid.UUID
	adminID    uuid.UUID
	deviceID   uuid.UUID
	deviceKey  string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	s.residentID = uuid.New()
	s.societyID = uuid.New()
	s.adminID = uuid.New()
	s.deviceID = uuid.New()

	dir := directory.NewInMemory()
	dir.AddResident(directory.Resident{
		ID:        residentIDOf(s.residentID),
		Name:      "Meera Shah",
		Phone:     "+919812345678",
		SocietyID: societyIDOf(s.societyID),
	})
	dir.AddSociety(directory.Society{
		ID:   societyIDOf(s.societyID),
		Name: "Lakeview Residency",
	})

	s.renderer = assets.NewInMemoryRenderer()
	s.scanLog = gatelog.NewInMemory()
	logger := slog.New(slog.DiscardHandler)
	svc := service.New(store.NewInMemory(), s.renderer, dir, logger,
		service.WithScanLog(s.scanLog))

	s.jwt = jwttoken.NewJWTService("test-key", "gatepass", "gatepass-api")

	s.registry = gate.NewInMemory()
	key, err := gate.GenerateKey()
	s.Require().NoError(err)
	s.deviceKey = key
	hash, err := gate.HashKey(key)
	s.Require().NoError(err)
	s.Require().NoError(s.registry.Register(s.T().Context(), gate.Device{
		ID:        deviceIDOf(s.deviceID),
		SocietyID: societyIDOf(s.societyID),
		Name:      "North Gate",
		KeyHash:   hash,
	}))

	h := New(svc, logger, nil, s.jwt, s.registry, s.scanLog)
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *HandlerSuite) token(userID uuid.UUID, role string) string {
	token, err := s.jwt.GenerateAccessToken(userID, s.societyID, role, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *HandlerSuite) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) createGuestPass() map[string]any {
	rec := s.do(http.MethodPost, "/credentials", s.token(s.residentID, jwttoken.RoleResident), map[string]any{
		"kind": "guest",
		"guest_details": map[string]any{
			"name":             "Vikram Singh",
			"phone":            "+919876501234",
			"purpose":          "delivery",
			"number_of_guests": 1,
		},
		"valid_from":  time.Now().Add(-time.Hour).UTC(),
		"valid_until": time.Now().Add(24 * time.Hour).UTC(),
	})
	s.Require().Equal(http.StatusCreated, rec.Code, rec.Body.String())

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (s *HandlerSuite) TestCreateGuestPass() {
	resp := s.createGuestPass()

	s.Equal("guest", resp["kind"])
	s.Equal("pending", resp["status"])
	s.Len(resp["pin_code"], 6)
	s.NotEmpty(resp["qr_payload"])
	s.NotEmpty(resp["qr_image_ref"])
	s.Equal(s.residentID.String(), resp["resident_id"])
}

func (s *HandlerSuite) TestCreateRejectsBadInput() {
	token := s.token(s.residentID, jwttoken.RoleResident)

	s.Run("not json", func() {
		req := httptest.NewRequest(http.MethodPost, "/credentials", bytes.NewBufferString("{"))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("unknown kind", func() {
		rec := s.do(http.MethodPost, "/credentials", token, map[string]any{"kind": "drone"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("guest pass without details", func() {
		rec := s.do(http.MethodPost, "/credentials", token, map[string]any{
			"kind":        "guest",
			"valid_from":  time.Now().UTC(),
			"valid_until": time.Now().Add(time.Hour).UTC(),
		})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestAuthRequired() {
	rec := s.do(http.MethodGet, "/credentials", "", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)

	rec = s.do(http.MethodGet, "/credentials", "bogus-token", nil)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestDecisionRequiresAdminRole() {
	created := s.createGuestPass()
	path := fmt.Sprintf("/credentials/%s/decision", created["id"])
	body := map[string]any{"decision": "approved"}

	rec := s.do(http.MethodPost, path, s.token(s.residentID, jwttoken.RoleResident), body)
	s.Equal(http.StatusForbidden, rec.Code)

	rec = s.do(http.MethodPost, path, s.token(s.adminID, jwttoken.RoleAdmin), body)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())

	var resp map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &resp))
	s.Equal("approved", resp["status"])
	s.Equal(s.adminID.String(), resp["approved_by"])
}

func (s *HandlerSuite) TestDecisionConflictsAfterSettled() {
	created := s.createGuestPass()
	path := fmt.Sprintf("/credentials/%s/decision", created["id"])
	admin := s.token(s.adminID, jwttoken.RoleAdmin)

	rec := s.do(http.MethodPost, path, admin, map[string]any{"decision": "approved"})
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, path, admin, map[string]any{"decision": "rejected"})
	s.Equal(http.StatusConflict, rec.Code)
}

func (s *HandlerSuite) TestListAndGet() {
	created := s.createGuestPass()
	token := s.token(s.residentID, jwttoken.RoleResident)

	rec := s.do(http.MethodGet, "/credentials", token, nil)
	s.Require().Equal(http.StatusOK, rec.Code)
	var list map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.EqualValues(1, list["count"])

	rec = s.do(http.MethodGet, "/credentials/"+created["id"].(string), token, nil)
	s.Equal(http.StatusOK, rec.Code)

	s.Run("another resident sees nothing", func() {
		otherToken := s.token(uuid.New(), jwttoken.RoleResident)
		rec := s.do(http.MethodGet, "/credentials/"+created["id"].(string), otherToken, nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestAdminListSeesSocietyQueue() {
	created := s.createGuestPass()
	admin := s.token(s.adminID, jwttoken.RoleAdmin)

	rec := s.do(http.MethodGet, "/credentials", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var list map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
	s.EqualValues(1, list["count"])
	creds := list["credentials"].([]any)
	s.Equal(created["id"], creds[0].(map[string]any)["id"])

	s.Run("residentId filter narrows the queue", func() {
		rec := s.do(http.MethodGet, "/credentials?residentId="+s.residentID.String(), admin, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var filtered map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &filtered))
		s.EqualValues(1, filtered["count"])

		rec = s.do(http.MethodGet, "/credentials?residentId="+uuid.NewString(), admin, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &filtered))
		s.EqualValues(0, filtered["count"])
	})

	s.Run("status filter applies", func() {
		rec := s.do(http.MethodGet, "/credentials?status=pending", admin, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var filtered map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &filtered))
		s.EqualValues(1, filtered["count"])
	})

	s.Run("malformed residentId rejected", func() {
		rec := s.do(http.MethodGet, "/credentials?residentId=not-a-uuid", admin, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("admin of another society sees nothing", func() {
		foreign, err := s.jwt.GenerateAccessToken(uuid.New(), uuid.New(), jwttoken.RoleAdmin, time.Hour)
		s.Require().NoError(err)
		rec := s.do(http.MethodGet, "/credentials", foreign, nil)
		s.Require().Equal(http.StatusOK, rec.Code)
		var list map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &list))
		s.EqualValues(0, list["count"])
	})
}

func (s *HandlerSuite) TestScanHistory() {
	created := s.createGuestPass()
	path := fmt.Sprintf("/credentials/%s/decision", created["id"])
	rec := s.do(http.MethodPost, path, s.token(s.adminID, jwttoken.RoleAdmin), map[string]any{"decision": "approved"})
	s.Require().Equal(http.StatusOK, rec.Code)
	rec = s.doScan(s.deviceID.String(), s.deviceKey, created["qr_payload"].(string))
	s.Require().Equal(http.StatusOK, rec.Code)

	admin := s.token(s.adminID, jwttoken.RoleAdmin)
	rec = s.do(http.MethodGet, "/scans", admin, nil)
	s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
	var history map[string]any
	s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &history))
	s.EqualValues(1, history["count"])
	entry := history["scans"].([]any)[0].(map[string]any)
	s.Equal("allowed", entry["result"])
	s.Equal("North Gate", entry["device_name"])
	s.Equal(created["id"], entry["credential_id"])

	s.Run("resident role is forbidden", func() {
		rec := s.do(http.MethodGet, "/scans", s.token(s.residentID, jwttoken.RoleResident), nil)
		s.Equal(http.StatusForbidden, rec.Code)
	})

	s.Run("malformed limit rejected", func() {
		rec := s.do(http.MethodGet, "/scans?limit=zero", admin, nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestDelete() {
	created := s.createGuestPass()
	token := s.token(s.residentID, jwttoken.RoleResident)

	rec := s.do(http.MethodDelete, "/credentials/"+created["id"].(string), token, nil)
	s.Equal(http.StatusNoContent, rec.Code)

	rec = s.do(http.MethodGet, "/credentials/"+created["id"].(string), token, nil)
	s.Equal(http.StatusNotFound, rec.Code)
}

func (s *HandlerSuite) doScan(deviceID, deviceKey, payload string) *httptest.ResponseRecorder {
	body, err := json.Marshal(map[string]string{"payload": payload})
	s.Require().NoError(err)
	req := httptest.NewRequest(http.MethodPost, "/scan/verify", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if deviceID != "" {
		req.Header.Set("X-Device-ID", deviceID)
		req.Header.Set("X-Device-Key", deviceKey)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestScanVerify() {
	created := s.createGuestPass()
	path := fmt.Sprintf("/credentials/%s/decision", created["id"])
	rec := s.do(http.MethodPost, path, s.token(s.adminID, jwttoken.RoleAdmin), map[string]any{"decision": "approved"})
	s.Require().Equal(http.StatusOK, rec.Code)

	payload := created["qr_payload"].(string)

	s.Run("device auth required", func() {
		rec := s.doScan("", "", payload)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("wrong device key rejected", func() {
		rec := s.doScan(s.deviceID.String(), "wrong", payload)
		s.Equal(http.StatusUnauthorized, rec.Code)
	})

	s.Run("approved pass is allowed", func() {
		rec := s.doScan(s.deviceID.String(), s.deviceKey, payload)
		s.Require().Equal(http.StatusOK, rec.Code, rec.Body.String())
		var v map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &v))
		s.Equal(true, v["allowed"])
		s.Equal("Vikram Singh", v["subject_name"])
	})

	s.Run("garbage payload is a denial, not an error", func() {
		rec := s.doScan(s.deviceID.String(), s.deviceKey, "???not-a-payload???")
		s.Require().Equal(http.StatusOK, rec.Code)
		var v map[string]any
		s.Require().NoError(json.Unmarshal(rec.Body.Bytes(), &v))
		s.Equal(false, v["allowed"])
	})
}

func residentIDOf(u uuid.UUID) id.ResidentID { return id.ResidentID(u) }
func societyIDOf(u uuid.UUID) id.SocietyID   { return id.SocietyID(u) }
func deviceIDOf(u uuid.UUID) id.DeviceID     { return id.DeviceID(u) }
