// SPDX-FileCopyrightText: Copyright 2025 Stacklok, Inc.
// SPDX-License-Identifier: Apache-2.0

// Package telemetry provides OpenTelemetry instrumentation for the shiftdesk
// session layer: refresh exchanges, gate retries and session transitions.
//
// Instruments are created from injected providers; when none are configured
// the otel globals are used, which are no-ops until an SDK is installed.
package telemetry
