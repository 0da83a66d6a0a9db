package service

import "doc-merge-server/internal/domain"

// Mock logger used by service package tests.
type testLogger struct{}

func newTestLogger() domain.Logger { return &testLogger{} }

func (l *testLogger) Info(msg string, fields ...interface{})             {}
func (l *testLogger) Error(msg string, err error, fields ...interface{}) {}
func (l *testLogger) Debug(msg string, fields ...interface{})            {}
func (l *testLogger) Warn(msg string, fields ...interface{})             {}
