// Command ema-interview runs a voice interview against a hosted assistant
// from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	callsession "github.com/koscakluka/ema-interview/core"
	"github.com/koscakluka/ema-interview/core/audio"
	"github.com/koscakluka/ema-interview/core/audio/miniaudio"
	"github.com/koscakluka/ema-interview/core/voice/vapi"
	"github.com/koscakluka/ema-interview/internal/config"
	"github.com/koscakluka/ema-interview/internal/tui"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	kind := flag.String("type", string(callsession.SessionKindGenerate), "interview type passed to the assistant (generate or review)")
	flag.Parse()

	sessionKind, err := callsession.ParseSessionKind(*kind)
	if err != nil {
		return err
	}

	cfg, err := config.LoadVoice()
	if err != nil {
		return err
	}
	if cfg.UserID == "" {
		return fmt.Errorf("%s must be set to start an interview", config.EnvUserID)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	encodingInfo := audio.GetDefaultEncodingInfo()
	devices, err := miniaudio.NewClient(encodingInfo)
	if err != nil {
		return fmt.Errorf("failed to open audio devices: %w", err)
	}
	defer devices.Close()

	voice, err := vapi.NewClient(cfg.APIKey,
		vapi.WithBaseURL(cfg.BaseURL),
		vapi.WithEncodingInfo(encodingInfo),
		vapi.WithAudioCallback(func(audio []byte) { _ = devices.SendAudio(audio) }),
	)
	if err != nil {
		return fmt.Errorf("failed to create voice client: %w", err)
	}
	defer voice.Close(context.WithoutCancel(ctx))

	// Audio captured outside of a call has nowhere to go and is dropped.
	if err := devices.Stream(ctx, func(audio []byte) { _ = voice.SendAudio(audio) }); err != nil {
		return fmt.Errorf("failed to start audio stream: %w", err)
	}

	identity := callsession.Identity{
		UserName: cfg.UserName,
		UserID:   cfg.UserID,
		Kind:     sessionKind,
	}
	newSession := func(opts ...callsession.ControllerOption) tui.Session {
		opts = append([]callsession.ControllerOption{callsession.WithTemplateID(cfg.AssistantID)}, opts...)
		return callsession.NewController(voice, identity, opts...)
	}

	program := tea.NewProgram(tui.New(ctx, cfg.UserName, newSession), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := program.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return fmt.Errorf("interview ui failed: %w", err)
	}
	return nil
}
