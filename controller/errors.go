package controller

import (
	"errors"

	"github.com/arloliu/go-gsender/command"
	"github.com/arloliu/go-gsender/firmware"
)

// Sentinel errors returned by the controller. Match them with errors.Is.
var (
	ErrNotConnected      = errors.New("controller: not connected")
	ErrConnectionLost    = errors.New("controller: connection lost")
	ErrAlarmActive       = errors.New("controller: alarm active")
	ErrCommandTooLarge   = errors.New("controller: command exceeds firmware buffer capacity")
	ErrProbeTimeout      = errors.New("controller: probe timeout")
	ErrWriteFailed       = errors.New("controller: write failed")
	ErrInvalidState      = errors.New("controller: operation not valid in current state")
	ErrAlreadyStreaming  = errors.New("controller: already streaming")
	ErrNoProgram         = errors.New("controller: no program loaded")
	ErrSendTimeout       = errors.New("controller: send timeout")
	ErrUnexpectedAck     = errors.New("controller: acknowledgment without command in flight")
	ErrHandshakeTimeout  = errors.New("controller: no response from firmware")
	ErrFlushed           = errors.New("controller: command flushed by soft reset")
	ErrCloseTimeout      = errors.New("controller: close timeout")
	ErrInvalidExpression = command.ErrInvalidExpression
	ErrMalformedResponse = firmware.ErrMalformedResponse
	ErrUnknownFirmware   = firmware.ErrUnknownFirmware
)
