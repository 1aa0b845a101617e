// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

// Package services adapts Seawatch components to suture.Service.
//
// Components that already block in RunWithContext are wrapped by
// RunnerService. The HTTP server and the notification dispatcher need
// lifecycle translation and have their own wrappers. Every wrapper
// implements fmt.Stringer so suture logs a readable name.
package services
