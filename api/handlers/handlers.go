package handlers

import (
	"github.com/feichai0017/doc2md/internal/service/document"
	"github.com/feichai0017/doc2md/pkg/logger"
)

type Handlers struct {
	Document *DocumentHandler
	Config   *ConfigHandler
}

func NewHandlers(
	documentService document.DocumentProcessor,
	log logger.Logger,
) *Handlers {
	return &Handlers{
		Document: NewDocumentHandler(documentService, log),
		Config:   NewConfigHandler(documentService, log),
	}
}
