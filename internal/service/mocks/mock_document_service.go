package mocks

import (
	"context"
	"io"

	"docvault/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockDocumentService struct {
	mock.Mock
}

func (m *MockDocumentService) Upload(ctx context.Context, ownerID string, r io.Reader, originalFilename, title, contentType string, size int64) (*model.Document, error) {
	args := m.Called(ctx, ownerID, r, originalFilename, title, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Document), args.Error(1)
}

func (m *MockDocumentService) List(ctx context.Context, ownerID string) ([]model.Document, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Document), args.Error(1)
}

func (m *MockDocumentService) Download(ctx context.Context, ownerID, id string) (io.ReadCloser, *model.Document, error) {
	args := m.Called(ctx, ownerID, id)
	var rc io.ReadCloser
	if args.Get(0) != nil {
		rc = args.Get(0).(io.ReadCloser)
	}
	var doc *model.Document
	if args.Get(1) != nil {
		doc = args.Get(1).(*model.Document)
	}
	return rc, doc, args.Error(2)
}

func (m *MockDocumentService) Delete(ctx context.Context, ownerID, id string) error {
	args := m.Called(ctx, ownerID, id)
	return args.Error(0)
}
