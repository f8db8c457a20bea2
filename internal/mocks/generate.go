// Package mocks provides gomock implementations of the ports used by the console services.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our port interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	api := mocks.NewMockAuthAPI(ctrl)
//	api.EXPECT().Refresh(gomock.Any(), "refresh-1").Return(pair, nil)
package mocks

// Generate mock for AuthAPI interface from internal/ports package.
// This creates MockAuthAPI with methods: Login, Refresh
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=auth_api_mock.go github.com/instantmart/admin-console/internal/ports AuthAPI

// Generate mock for NotificationAPI interface from internal/ports package.
// This creates MockNotificationAPI with methods: List, UnreadCount, MarkAsRead, Delete, Acknowledge
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=notification_api_mock.go github.com/instantmart/admin-console/internal/ports NotificationAPI

// Generate mock for Requester interface from internal/ports package.
// This creates MockRequester with method: Send
//go:generate go run go.uber.org/mock/mockgen@v0.6.0 -package=mocks -destination=requester_mock.go github.com/instantmart/admin-console/internal/ports Requester
