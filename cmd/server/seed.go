package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"gatepass/internal/directory"
	"gatepass/internal/gate"
	jwttoken "gatepass/internal/jwt_token"
	id "gatepass/pkg/domain"
)

// seedDev creates a default society, resident, admin and gate device so the
// server is exercisable immediately after startup. The issued tokens and the
// device key are logged once; they exist only in this process.
func seedDev(log *slog.Logger, dir *directory.InMemory, devices *gate.InMemory, jwtService *jwttoken.JWTService) {
	societyID := uuid.New()
	residentID := uuid.New()
	adminID := uuid.New()
	deviceID := uuid.New()

	dir.AddSociety(directory.Society{
		ID:   id.SocietyID(societyID),
		Name: "Dev Society",
		City: "Localhost",
	})
	dir.AddResident(directory.Resident{
		ID:        id.ResidentID(residentID),
		Name:      "Dev Resident",
		Phone:     "+910000000000",
		SocietyID: id.SocietyID(societyID),
		Block:     "A",
		FlatNo:    "101",
	})

	deviceKey, err := gate.GenerateKey()
	if err != nil {
		log.Error("seed: generate device key", "error", err)
		return
	}
	keyHash, err := gate.HashKey(deviceKey)
	if err != nil {
		log.Error("seed: hash device key", "error", err)
		return
	}
	if err := devices.Register(context.Background(), gate.Device{
		ID:        id.DeviceID(deviceID),
		SocietyID: id.SocietyID(societyID),
		Name:      "Dev Gate",
		KeyHash:   keyHash,
	}); err != nil {
		log.Error("seed: register device", "error", err)
		return
	}

	residentToken, err := jwtService.GenerateAccessToken(residentID, societyID, jwttoken.RoleResident, 24*time.Hour)
	if err != nil {
		log.Error("seed: issue resident token", "error", err)
		return
	}
	adminToken, err := jwtService.GenerateAccessToken(adminID, societyID, jwttoken.RoleAdmin, 24*time.Hour)
	if err != nil {
		log.Error("seed: issue admin token", "error", err)
		return
	}

	log.Info("dev seed ready",
		"society_id", societyID.String(),
		"resident_id", residentID.String(),
		"resident_token", residentToken,
		"admin_token", adminToken,
		"device_id", deviceID.String(),
		"device_key", deviceKey,
	)
}
