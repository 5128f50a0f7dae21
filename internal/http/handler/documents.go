package handler

import (
	"errors"
	"mime"
	"net/url"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"docservice/internal/model"
	"docservice/internal/repository"
	"docservice/internal/service"
)

// orderingAliases maps the client ordering names onto record fields.
var orderingAliases = map[string]repository.OrderField{
	"id":          repository.OrderID,
	"upload_date": repository.OrderUploadedAt,
	"create_date": repository.OrderCreatedAt,
}

// ListDocuments serves GET /documents. Without paginate=true the full
// filtered result is returned as a JSON array.
func ListDocuments(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ordering, err := parseOrdering(c.Query("ordering"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_ORDERING", "invalid ordering")
		}

		req := service.ListRequest{
			Query: repository.ListQuery{
				Filter: repository.Filter{
					ClassifiedType: strings.ToLower(c.Query("file_type")),
					ContactRef:     c.Query("contact_uuid"),
					WorkflowScope1: c.Query("workflowlevel1_uuid"),
					WorkflowScope2: c.Query("workflowlevel2_uuid"),
				},
				Ordering: ordering,
			},
			Paginate: isTrue(c.Query("paginate")),
			Cursor:   c.Query("cursor"),
		}
		// an unparsable page_size falls back to the default
		if n, err := strconv.Atoi(c.Query("page_size")); err == nil {
			req.PageSize = n
		}

		res, err := docSvc.List(c.UserContext(), req)
		if err != nil {
			return writeServiceError(c, err)
		}

		if !res.Paginated {
			return c.JSON(toResponses(c, res.Items))
		}
		return c.JSON(pageResponse{
			Next:     pageURL(c, res.Next),
			Previous: pageURL(c, res.Previous),
			Results:  toResponses(c, res.Items),
		})
	}
}

// CreateDocument serves POST /documents with a JSON or multipart body.
func CreateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		in, err := parseInput(c)
		if err != nil {
			return writeInputError(c, err)
		}

		doc, err := docSvc.Create(c.UserContext(), in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(toResponse(c, doc))
	}
}

// GetDocument serves GET /documents/:id.
func GetDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
		}

		doc, err := docSvc.Get(c.UserContext(), id)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(toResponse(c, doc))
	}
}

// UpdateDocument serves PUT and PATCH /documents/:id. Both merge the body
// over the stored record.
func UpdateDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
		}

		in, err := parseInput(c)
		if err != nil {
			return writeInputError(c, err)
		}

		doc, err := docSvc.Update(c.UserContext(), id, in)
		if err != nil {
			return writeServiceError(c, err)
		}
		return c.JSON(toResponse(c, doc))
	}
}

// DeleteDocument serves DELETE /documents/:id.
func DeleteDocument(docSvc service.DocumentService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "document not found")
		}

		if err := docSvc.Delete(c.UserContext(), id); err != nil {
			return writeServiceError(c, err)
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// DownloadDocument streams the content or thumbnail of a document as an
// attachment.
func DownloadDocument(docSvc service.DocumentService, kind service.DownloadKind) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, ok := documentID(c)
		if !ok {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
		}

		dl, err := docSvc.Download(c.UserContext(), id, kind)
		if err != nil {
			if errors.Is(err, service.ErrNotFound) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "file not found")
			}
			return writeServiceError(c, err)
		}

		contentType := dl.ContentType
		if contentType == "" {
			contentType = fiber.MIMEOctetStream
		}
		c.Set(fiber.HeaderContentType, contentType)
		c.Set(fiber.HeaderContentDisposition, mime.FormatMediaType("attachment", map[string]string{"filename": dl.Filename}))
		// fasthttp closes the body once it has been written
		return c.SendStream(dl.Body, int(dl.Size))
	}
}

// Options answers OPTIONS with the methods allowed on the route.
func Options(methods ...string) fiber.Handler {
	allow := strings.Join(methods, ", ")
	return func(c *fiber.Ctx) error {
		c.Set(fiber.HeaderAllow, allow)
		return c.SendStatus(fiber.StatusOK)
	}
}

func writeInputError(c *fiber.Ctx, err error) error {
	var ve *model.ValidationError
	if errors.As(err, &ve) {
		return writeValidation(c, ve)
	}
	return writeError(c, fiber.StatusBadRequest, "BAD_REQUEST", "malformed request body")
}

// documentID parses the :id parameter. Malformed ids are reported as not
// found, the same as unknown ones.
func documentID(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func parseOrdering(s string) (repository.Ordering, error) {
	s = strings.TrimSpace(s)
	desc := strings.HasPrefix(s, "-")
	name := strings.TrimPrefix(s, "-")
	if field, ok := orderingAliases[name]; ok {
		name = string(field)
	}
	if desc {
		name = "-" + name
	}
	return repository.ParseOrdering(name)
}

func isTrue(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes":
		return true
	}
	return false
}

// pageURL returns the current request URL with cursor replaced, or nil for
// an empty cursor.
func pageURL(c *fiber.Ctx, cursor string) *string {
	if cursor == "" {
		return nil
	}
	q := url.Values{}
	for k, v := range c.Queries() {
		q.Set(k, v)
	}
	q.Set("cursor", cursor)
	u := c.BaseURL() + c.Path() + "?" + q.Encode()
	return &u
}
