package utils

import (
	"context"
	"encoding/hex"
	"log/slog"

	"github.com/moodclient/tn3270"
	"github.com/moodclient/tn3270/screen"
	"github.com/moodclient/tn3270/telopts"
)

const LevelNone slog.Level = -8

type DebugLogConfig struct {
	EncounteredErrorLevel slog.Level
	InboundRecordLevel    slog.Level
	OutboundRecordLevel   slog.Level
	ScreenUpdateLevel     slog.Level
	NegotiationLevel      slog.Level
	TelnetCommandLevel    slog.Level
}

type DebugLog struct {
	logger *slog.Logger
	config DebugLogConfig
}

// NewDebugLog logs the events of a running terminal. Negotiation is over by the time a
// terminal exists, so use DebugLogHooks to log it.
func NewDebugLog(terminal *tn3270.Terminal, logger *slog.Logger, config DebugLogConfig) *DebugLog {
	log := &DebugLog{logger: logger, config: config}

	terminal.RegisterEncounteredErrorHook(log.logError)
	terminal.RegisterInboundRecordHook(log.logInboundRecord)
	terminal.RegisterOutboundRecordHook(log.logOutboundRecord)
	terminal.RegisterScreenUpdateHook(log.logScreenUpdate)
	terminal.RegisterNegotiationHook(log.logNegotiation)
	terminal.RegisterTelnetCommandHook(log.logTelnetCommand)

	return log
}

// DebugLogHooks returns hooks to pass in TerminalConfig.EventHooks, which log everything
// from the start of negotiation
func DebugLogHooks(logger *slog.Logger, config DebugLogConfig) tn3270.EventHooks {
	log := &DebugLog{logger: logger, config: config}

	return tn3270.EventHooks{
		EncounteredError: []tn3270.ErrorHandler{log.logError},
		InboundRecord:    []tn3270.RecordHandler{log.logInboundRecord},
		OutboundRecord:   []tn3270.RecordHandler{log.logOutboundRecord},
		ScreenUpdate:     []tn3270.ScreenUpdateHandler{log.logScreenUpdate},
		Negotiation:      []tn3270.NegotiationHandler{log.logNegotiation},
		TelnetCommand:    []tn3270.TelnetCommandHandler{log.logTelnetCommand},
	}
}

func session(terminal *tn3270.Terminal) slog.Attr {
	return slog.String("session", terminal.ID().String())
}

func (l *DebugLog) logError(terminal *tn3270.Terminal, err error) {
	l.logger.LogAttrs(context.Background(), l.config.EncounteredErrorLevel, "Encountered error", session(terminal), slog.Any("error", err))
}

func recordAttrs(terminal *tn3270.Terminal, record tn3270.Record) []slog.Attr {
	attrs := []slog.Attr{session(terminal)}
	if record.HasHeader {
		attrs = append(attrs, slog.String("header", record.Header.String()))
	}

	return append(attrs, slog.String("data", hex.EncodeToString(record.Data)))
}

func (l *DebugLog) logInboundRecord(terminal *tn3270.Terminal, record tn3270.Record) {
	l.logger.LogAttrs(context.Background(), l.config.InboundRecordLevel, "Received record", recordAttrs(terminal, record)...)
}

func (l *DebugLog) logOutboundRecord(terminal *tn3270.Terminal, record tn3270.Record) {
	l.logger.LogAttrs(context.Background(), l.config.OutboundRecordLevel, "Sent record", recordAttrs(terminal, record)...)
}

func (l *DebugLog) logScreenUpdate(terminal *tn3270.Terminal, event screen.UpdateEvent) {
	attrs := []slog.Attr{
		session(terminal),
		slog.String("type", event.Type.String()),
		slog.Int("cursor", event.Snapshot.Cursor),
		slog.Bool("keyboardLocked", event.Snapshot.KeyboardLocked),
	}

	switch event.Type {
	case screen.UpdateInbound:
		if event.Message != nil {
			attrs = append(attrs, slog.String("message", event.Message.String()))
		}
		attrs = append(attrs, slog.String("screen", event.Snapshot.String()))
		if event.Alarm {
			attrs = append(attrs, slog.Bool("alarm", true))
		}
	case screen.UpdateOutbound:
		attrs = append(attrs, slog.String("aid", event.AID.String()))
	}

	l.logger.LogAttrs(context.Background(), l.config.ScreenUpdateLevel, "Screen update", attrs...)
}

func (l *DebugLog) logNegotiation(terminal *tn3270.Terminal, event tn3270.NegotiationEvent) {
	l.logger.LogAttrs(context.Background(), l.config.NegotiationLevel, "Negotiation state change",
		session(terminal),
		slog.String("oldState", event.Previous.String()),
		slog.String("newState", event.State.String()),
	)
}

func (l *DebugLog) logTelnetCommand(terminal *tn3270.Terminal, event tn3270.TelnetCommandEvent) {
	message := "Received command"
	if event.Outbound {
		message = "Sent command"
	}

	l.logger.LogAttrs(context.Background(), l.config.TelnetCommandLevel, message, session(terminal), slog.String("command", telopts.CommandString(event.Command)))
}
