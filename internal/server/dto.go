package server

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pixelforge/forge/internal/db/models"
	"github.com/pixelforge/forge/internal/services/project"
)

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string    `json:"token"`
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *models.User) userResponse {
	return userResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: string(u.Role), CreatedAt: u.CreatedAt}
}

type whoAmIResponse struct {
	User      userResponse `json:"user"`
	IssuedAt  time.Time    `json:"issuedAt"`
	ExpiresAt time.Time    `json:"expiresAt"`
}

// techStackField accepts either a JSON array of strings or a single
// comma-separated string.
type techStackField []string

func (t *techStackField) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = list
		return nil
	}
	var joined string
	if err := json.Unmarshal(data, &joined); err != nil {
		return err
	}
	*t = strings.Split(joined, ",")
	return nil
}

type createProjectRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Deadline    *string        `json:"deadline"`
	Status      string         `json:"status"`
	TechStack   techStackField `json:"techStack"`
}

type assigneeResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type projectResponse struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	Deadline        *time.Time         `json:"deadline,omitempty"`
	Status          string             `json:"status"`
	TechStack       []string           `json:"techStack"`
	AssignedUserIDs []string           `json:"assignedUserIds"`
	AssignedUsers   []assigneeResponse `json:"assignedUsers"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func toProjectResponse(p *models.Project) projectResponse {
	techStack := []string(p.TechStack)
	if techStack == nil {
		techStack = []string{}
	}
	ids := []string(p.AssignedUsers)
	if ids == nil {
		ids = []string{}
	}
	return projectResponse{
		ID:              p.ID,
		Name:            p.Name,
		Description:     p.Description,
		Deadline:        p.Deadline,
		Status:          string(p.Status),
		TechStack:       techStack,
		AssignedUserIDs: ids,
		AssignedUsers:   []assigneeResponse{},
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func toProjectViewResponse(v project.ProjectView) projectResponse {
	resp := toProjectResponse(v.Project)
	resp.AssignedUsers = make([]assigneeResponse, 0, len(v.Assignees))
	for _, a := range v.Assignees {
		resp.AssignedUsers = append(resp.AssignedUsers, assigneeResponse{ID: a.ID, Name: a.Name})
	}
	return resp
}

type assignmentRequest struct {
	ProjectID   string `json:"projectId"`
	DeveloperID string `json:"developerId"`
}

type assignmentResponse struct {
	ProjectID   string `json:"projectId"`
	DeveloperID string `json:"developerId"`
	Changed     bool   `json:"changed"`
}

type documentResponse struct {
	ID          string    `json:"id"`
	ProjectID   string    `json:"projectId"`
	UploaderID  string    `json:"uploaderId"`
	Name        string    `json:"name"`
	ContentType string    `json:"contentType,omitempty"`
	SizeBytes   int64     `json:"sizeBytes"`
	UploadedAt  time.Time `json:"uploadedAt"`
}

func toDocumentResponse(d *models.Document) documentResponse {
	return documentResponse{
		ID:          d.ID,
		ProjectID:   d.ProjectID,
		UploaderID:  d.UploaderID,
		Name:        d.OriginalName,
		ContentType: d.ContentType,
		SizeBytes:   d.SizeBytes,
		UploadedAt:  d.UploadedAt,
	}
}
