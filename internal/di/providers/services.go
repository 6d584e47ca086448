package providers

import (
	"github.com/samber/do/v2"

	"github.com/docshelf/docshelf/internal/service"
	"github.com/docshelf/docshelf/internal/session"
	"github.com/docshelf/docshelf/internal/validation"
)

// ProvideDashboardService provides the home page service.
func ProvideDashboardService(i do.Injector) (*service.DashboardService, error) {
	client := do.MustInvoke[*APIClientHandle](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewDashboardService(client.Client, log.Logger.Logger), nil
}

// ProvideDocumentService provides the document service.
func ProvideDocumentService(i do.Injector) (*service.DocumentService, error) {
	client := do.MustInvoke[*APIClientHandle](i)
	sess := do.MustInvoke[*session.Manager](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewDocumentService(client.Client, sess, v, log.Logger.Logger), nil
}

// ProvideUploadService provides the upload service.
func ProvideUploadService(i do.Injector) (*service.UploadService, error) {
	client := do.MustInvoke[*APIClientHandle](i)
	v := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*LoggerHandle](i)

	return service.NewUploadService(client.Client, v, log.Logger.Logger), nil
}
