// Seawatch - Abnormal Vessel Behaviour Analysis
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/seawatch

/*
Package supervisor runs the long-lived Seawatch services under suture v4.

The tree isolates failures by layer:

	RootSupervisor ("seawatch")
	├── PipelineSupervisor ("pipeline-layer")
	│   ├── DispatcherService
	│   └── SweeperService
	├── MessagingSupervisor ("messaging-layer")
	│   ├── IngestService
	│   └── WebSocketHubService
	└── APISupervisor ("api-layer")
	    └── HTTPServerService

Supervisor events are logged through sutureslog into the zerolog logger.
Service wrappers live in the services subpackage.
*/
package supervisor
