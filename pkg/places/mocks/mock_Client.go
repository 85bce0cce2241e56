// Package mocks provides test doubles for the places client.
package mocks

import (
	"context"

	places "github.com/sells-group/places-cli/pkg/places"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// NearbySearch provides a mock function with given fields: ctx, req
func (_m *MockClient) NearbySearch(ctx context.Context, req places.NearbySearchRequest) (*places.NearbySearchResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for NearbySearch")
	}

	var r0 *places.NearbySearchResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, places.NearbySearchRequest) (*places.NearbySearchResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, places.NearbySearchRequest) *places.NearbySearchResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*places.NearbySearchResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, places.NearbySearchRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DistanceMatrix provides a mock function with given fields: ctx, req
func (_m *MockClient) DistanceMatrix(ctx context.Context, req places.DistanceMatrixRequest) (*places.DistanceMatrixResponse, error) {
	ret := _m.Called(ctx, req)

	if len(ret) == 0 {
		panic("no return value specified for DistanceMatrix")
	}

	var r0 *places.DistanceMatrixResponse
	var r1 error
	if rf, ok := ret.Get(0).(func(context.Context, places.DistanceMatrixRequest) (*places.DistanceMatrixResponse, error)); ok {
		return rf(ctx, req)
	}
	if rf, ok := ret.Get(0).(func(context.Context, places.DistanceMatrixRequest) *places.DistanceMatrixResponse); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*places.DistanceMatrixResponse)
		}
	}

	if rf, ok := ret.Get(1).(func(context.Context, places.DistanceMatrixRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
