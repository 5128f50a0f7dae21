package handler

import (
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"docservice/internal/model"
	"docservice/internal/service"
)

var errMalformedBody = errors.New("malformed request body")

// documentResponse is the wire shape of a document. Storage keys are never
// exposed; file and thumbnail are download URLs.
type documentResponse struct {
	ID               int64      `json:"id"`
	UUID             string     `json:"uuid"`
	FileName         string     `json:"file_name"`
	FileDescription  *string    `json:"file_description"`
	FileType         string     `json:"file_type"`
	File             *string    `json:"file"`
	Thumbnail        *string    `json:"thumbnail"`
	PageCount        *int       `json:"page_count"`
	CreateDate       *time.Time `json:"create_date"`
	UploadDate       time.Time  `json:"upload_date"`
	OrganizationUUID *string    `json:"organization_uuid"`
	UserUUID         *string    `json:"user_uuid"`
	ContactUUID      *string    `json:"contact_uuid"`
	Workflowlevel1   []string   `json:"workflowlevel1_uuids"`
	Workflowlevel2   []string   `json:"workflowlevel2_uuids"`
}

// pageResponse is the paginated listing shape.
type pageResponse struct {
	Next     *string            `json:"next"`
	Previous *string            `json:"previous"`
	Results  []documentResponse `json:"results"`
}

func toResponse(c *fiber.Ctx, d *model.Document) documentResponse {
	res := documentResponse{
		ID:               d.ID,
		UUID:             d.ExternalID,
		FileName:         d.DisplayName,
		FileDescription:  nullable(d.Description),
		FileType:         string(d.ClassifiedType),
		PageCount:        d.PageCount,
		CreateDate:       d.CreatedAt,
		UploadDate:       d.UploadedAt,
		OrganizationUUID: nullable(d.OrganizationRef),
		UserUUID:         nullable(d.UserRef),
		ContactUUID:      nullable(d.ContactRef),
		Workflowlevel1:   nonNil(d.WorkflowScope1),
		Workflowlevel2:   nonNil(d.WorkflowScope2),
	}
	id := strconv.FormatInt(d.ID, 10)
	if d.HasContent() {
		u := c.BaseURL() + "/file/" + id
		res.File = &u
	}
	if d.HasThumbnail() {
		u := c.BaseURL() + "/thumbnail/" + id
		res.Thumbnail = &u
	}
	return res
}

func toResponses(c *fiber.Ctx, docs []model.Document) []documentResponse {
	out := make([]documentResponse, 0, len(docs))
	for i := range docs {
		out = append(out, toResponse(c, &docs[i]))
	}
	return out
}

// documentRequest is the JSON create/update body. file carries inline
// content as a data URI or bare base64.
type documentRequest struct {
	FileName         *string    `json:"file_name"`
	FileDescription  *string    `json:"file_description"`
	File             *string    `json:"file"`
	CreateDate       *time.Time `json:"create_date"`
	OrganizationUUID *string    `json:"organization_uuid"`
	UserUUID         *string    `json:"user_uuid"`
	ContactUUID      *string    `json:"contact_uuid"`
	Workflowlevel1   *[]string  `json:"workflowlevel1_uuids"`
	Workflowlevel2   *[]string  `json:"workflowlevel2_uuids"`
}

// parseInput reads a DocumentInput from a JSON or multipart body. Malformed
// fields are carried in DocumentInput.Invalid so the service reports them
// with the rest; the error is only for bodies that cannot be read at all.
func parseInput(c *fiber.Ctx) (service.DocumentInput, error) {
	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		return parseMultipart(c)
	}
	return parseJSON(c)
}

func parseJSON(c *fiber.Ctx) (service.DocumentInput, error) {
	var req documentRequest
	if len(c.Body()) > 0 {
		if err := json.Unmarshal(c.Body(), &req); err != nil {
			return service.DocumentInput{}, errMalformedBody
		}
	}

	in := service.DocumentInput{
		DisplayName:     req.FileName,
		Description:     req.FileDescription,
		CreatedAt:       req.CreateDate,
		OrganizationRef: req.OrganizationUUID,
		UserRef:         req.UserUUID,
		ContactRef:      req.ContactUUID,
		WorkflowScope1:  req.Workflowlevel1,
		WorkflowScope2:  req.Workflowlevel2,
	}
	if req.File != nil && *req.File != "" {
		content, err := service.ParseDataURI(*req.File)
		if err != nil {
			in.Invalid = invalidField("content_key", err.Error())
		} else {
			in.Content = content
		}
	}
	return in, nil
}

func parseMultipart(c *fiber.Ctx) (service.DocumentInput, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return service.DocumentInput{}, errMalformedBody
	}

	var in service.DocumentInput
	v := &model.ValidationError{}

	in.DisplayName = formValue(form, "file_name")
	in.Description = formValue(form, "file_description")
	in.OrganizationRef = formValue(form, "organization_uuid")
	in.UserRef = formValue(form, "user_uuid")
	in.ContactRef = formValue(form, "contact_uuid")
	in.WorkflowScope1 = formList(form, "workflowlevel1_uuids")
	in.WorkflowScope2 = formList(form, "workflowlevel2_uuids")

	if s := formValue(form, "create_date"); s != nil && *s != "" {
		t, err := time.Parse(time.RFC3339, *s)
		if err != nil {
			v.Add("created_at", "invalid", "datetime has wrong format, use RFC 3339")
		} else {
			in.CreatedAt = &t
		}
	}

	if files := form.File["file"]; len(files) > 0 {
		content, err := readPart(files[0])
		if err != nil {
			v.Add("content_key", "invalid", "uploaded file could not be read")
		} else {
			in.Content = content
		}
	}

	if len(v.Fields) > 0 {
		in.Invalid = v
	}
	return in, nil
}

func readPart(fh *multipart.FileHeader) (*service.Content, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, errors.New("empty file")
	}
	return &service.Content{
		Data:        data,
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
	}, nil
}

func formValue(form *multipart.Form, key string) *string {
	vals, ok := form.Value[key]
	if !ok || len(vals) == 0 {
		return nil
	}
	return &vals[0]
}

// formList accepts repeated keys as well as one comma separated value.
func formList(form *multipart.Form, key string) *[]string {
	vals, ok := form.Value[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(vals))
	for _, v := range vals {
		for _, part := range strings.Split(v, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return &out
}

func invalidField(field, message string) *model.ValidationError {
	v := &model.ValidationError{}
	v.Add(field, "invalid", message)
	return v
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
