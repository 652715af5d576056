package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielgtaylor/huma/v2"
	"github.com/recodarr/recodarr/internal/models"
	"github.com/recodarr/recodarr/internal/repository"
	"gopkg.in/yaml.v3"
)

// ProfileHandler handles encoding profile API endpoints.
type ProfileHandler struct {
	profiles repository.ProfileRepository
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles repository.ProfileRepository) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// Register registers the profile routes with the API.
func (h *ProfileHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "listProfiles",
		Method:      "GET",
		Path:        "/api/v1/profiles",
		Summary:     "List profiles",
		Tags:        []string{"Profiles"},
	}, h.List)

	huma.Register(api, huma.Operation{
		OperationID: "exportProfiles",
		Method:      "GET",
		Path:        "/api/v1/profiles/export",
		Summary:     "Export profiles as YAML",
		Tags:        []string{"Profiles"},
	}, h.Export)

	huma.Register(api, huma.Operation{
		OperationID: "importProfiles",
		Method:      "POST",
		Path:        "/api/v1/profiles/import",
		Summary:     "Import profiles from YAML",
		Description: "Creates or updates profiles by name from a YAML document",
		Tags:        []string{"Profiles"},
	}, h.Import)

	huma.Register(api, huma.Operation{
		OperationID: "getProfile",
		Method:      "GET",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Get profile",
		Tags:        []string{"Profiles"},
	}, h.GetByID)

	huma.Register(api, huma.Operation{
		OperationID: "createProfile",
		Method:      "POST",
		Path:        "/api/v1/profiles",
		Summary:     "Create profile",
		Tags:        []string{"Profiles"},
	}, h.Create)

	huma.Register(api, huma.Operation{
		OperationID: "updateProfile",
		Method:      "PUT",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Update profile",
		Tags:        []string{"Profiles"},
	}, h.Update)

	huma.Register(api, huma.Operation{
		OperationID: "deleteProfile",
		Method:      "DELETE",
		Path:        "/api/v1/profiles/{id}",
		Summary:     "Delete profile",
		Description: "Deletes a profile. Refused while active queue items reference it.",
		Tags:        []string{"Profiles"},
	}, h.Delete)

	huma.Register(api, huma.Operation{
		OperationID: "setDefaultProfile",
		Method:      "POST",
		Path:        "/api/v1/profiles/{id}/default",
		Summary:     "Set default profile",
		Description: "Marks a profile as the default used for pushed and pulled candidates",
		Tags:        []string{"Profiles"},
	}, h.SetDefault)
}

// ProfileBody is the writable subset of a profile.
type ProfileBody struct {
	Name             string  `json:"name" minLength:"1" maxLength:"255" doc:"Profile name"`
	Codec            string  `json:"codec" enum:"av1,h265,h264,vp9" doc:"Target video codec"`
	Encoder          string  `json:"encoder,omitempty" doc:"Explicit encoder name (overrides hardware selection)"`
	Quality          int     `json:"quality" minimum:"0" maximum:"51" default:"28" doc:"Constant quality (RF)"`
	Container        string  `json:"container" enum:"mkv,mp4,webm" default:"mkv" doc:"Output container"`
	Resolution       string  `json:"resolution,omitempty" doc:"Target resolution WxH; empty keeps source"`
	Framerate        float64 `json:"framerate,omitempty" doc:"Target framerate; zero keeps source"`
	AudioStrategy    string  `json:"audio_strategy" enum:"preserve_all,keep_primary,stereo_mixdown,hd_plus_aac,high_quality" default:"preserve_all"`
	SubtitleStrategy string  `json:"subtitle_strategy" enum:"preserve_all,keep_english,burn_in,foreign_scan,none" default:"preserve_all"`
	EnableFilters    bool    `json:"enable_filters,omitempty" doc:"Enable decomb and NLMeans filters"`
	ChapterMarkers   *bool   `json:"chapter_markers,omitempty" doc:"Keep chapter markers (default true)"`
	HWAccelEnabled   bool    `json:"hw_accel_enabled,omitempty" doc:"Allow hardware encoder selection"`
	Preset           string  `json:"preset,omitempty" doc:"Encoder preset"`
	TwoPass          bool    `json:"two_pass,omitempty" doc:"Two-pass encoding"`
	CustomArgs       string  `json:"custom_args,omitempty" maxLength:"2048" doc:"Extra transcoder arguments, appended last"`
	IsDefault        bool    `json:"is_default,omitempty" doc:"Set as the default profile"`
}

func (b ProfileBody) apply(p *models.Profile) {
	p.Name = b.Name
	p.Codec = models.VideoCodec(b.Codec)
	p.Encoder = b.Encoder
	p.Quality = b.Quality
	p.Container = models.Container(b.Container)
	p.Resolution = b.Resolution
	p.Framerate = b.Framerate
	p.AudioStrategy = models.AudioStrategy(b.AudioStrategy)
	p.SubtitleStrategy = models.SubtitleStrategy(b.SubtitleStrategy)
	p.EnableFilters = b.EnableFilters
	if b.ChapterMarkers != nil {
		p.ChapterMarkers = b.ChapterMarkers
	}
	p.HWAccelEnabled = b.HWAccelEnabled
	p.Preset = b.Preset
	p.TwoPass = b.TwoPass
	p.CustomArgs = b.CustomArgs
	p.IsDefault = b.IsDefault
}

// ListProfilesOutput is the output for listing profiles.
type ListProfilesOutput struct {
	Body struct {
		Profiles []*models.Profile `json:"profiles"`
	}
}

// List returns all profiles.
func (h *ProfileHandler) List(ctx context.Context, input *struct{}) (*ListProfilesOutput, error) {
	profiles, err := h.profiles.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list profiles", err)
	}
	out := &ListProfilesOutput{}
	out.Body.Profiles = profiles
	return out, nil
}

// ProfileIDInput identifies one profile.
type ProfileIDInput struct {
	ID string `path:"id" doc:"Profile ID (ULID)"`
}

// ProfileOutput is the output for a single profile.
type ProfileOutput struct {
	Body models.Profile
}

// GetByID returns a profile by ID.
func (h *ProfileHandler) GetByID(ctx context.Context, input *ProfileIDInput) (*ProfileOutput, error) {
	profile, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &ProfileOutput{Body: *profile}, nil
}

// CreateProfileInput is the input for creating a profile.
type CreateProfileInput struct {
	Body ProfileBody
}

// Create creates a new profile.
func (h *ProfileHandler) Create(ctx context.Context, input *CreateProfileInput) (*ProfileOutput, error) {
	profile := &models.Profile{}
	input.Body.apply(profile)
	if err := h.profiles.Create(ctx, profile); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to create profile", err)
	}
	if profile.IsDefault {
		if err := h.profiles.SetDefault(ctx, profile.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to set default profile", err)
		}
	}
	return &ProfileOutput{Body: *profile}, nil
}

// UpdateProfileInput is the input for updating a profile.
type UpdateProfileInput struct {
	ID   string `path:"id" doc:"Profile ID (ULID)"`
	Body ProfileBody
}

// Update replaces the writable fields of a profile.
func (h *ProfileHandler) Update(ctx context.Context, input *UpdateProfileInput) (*ProfileOutput, error) {
	profile, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	input.Body.apply(profile)
	if err := h.profiles.Update(ctx, profile); err != nil {
		return nil, huma.Error422UnprocessableEntity("failed to update profile", err)
	}
	if profile.IsDefault {
		if err := h.profiles.SetDefault(ctx, profile.ID); err != nil {
			return nil, huma.Error500InternalServerError("failed to set default profile", err)
		}
	}
	return &ProfileOutput{Body: *profile}, nil
}

// Delete removes a profile.
func (h *ProfileHandler) Delete(ctx context.Context, input *ProfileIDInput) (*MessageOutput, error) {
	profile, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.profiles.Delete(ctx, profile.ID); err != nil {
		if errors.Is(err, repository.ErrProfileInUse) {
			return nil, huma.Error409Conflict("profile is referenced by active queue items")
		}
		return nil, huma.Error500InternalServerError("failed to delete profile", err)
	}
	return messageOutput("profile deleted"), nil
}

// SetDefault marks a profile as the default.
func (h *ProfileHandler) SetDefault(ctx context.Context, input *ProfileIDInput) (*MessageOutput, error) {
	profile, err := h.lookup(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	if err := h.profiles.SetDefault(ctx, profile.ID); err != nil {
		return nil, huma.Error500InternalServerError("failed to set default profile", err)
	}
	return messageOutput("default profile set"), nil
}

// profileYAML is the import/export document shape for one profile.
type profileYAML struct {
	Name             string  `yaml:"name"`
	Codec            string  `yaml:"codec"`
	Encoder          string  `yaml:"encoder,omitempty"`
	Quality          int     `yaml:"quality"`
	Container        string  `yaml:"container"`
	Resolution       string  `yaml:"resolution,omitempty"`
	Framerate        float64 `yaml:"framerate,omitempty"`
	AudioStrategy    string  `yaml:"audio_strategy"`
	SubtitleStrategy string  `yaml:"subtitle_strategy"`
	EnableFilters    bool    `yaml:"enable_filters,omitempty"`
	ChapterMarkers   *bool   `yaml:"chapter_markers,omitempty"`
	HWAccelEnabled   bool    `yaml:"hw_accel_enabled,omitempty"`
	Preset           string  `yaml:"preset,omitempty"`
	TwoPass          bool    `yaml:"two_pass,omitempty"`
	CustomArgs       string  `yaml:"custom_args,omitempty"`
	IsDefault        bool    `yaml:"is_default,omitempty"`
}

type profileDocument struct {
	Profiles []profileYAML `yaml:"profiles"`
}

// ExportProfilesOutput carries the YAML document.
type ExportProfilesOutput struct {
	ContentType string `header:"Content-Type"`
	Body        []byte
}

// Export serialises all profiles as YAML.
func (h *ProfileHandler) Export(ctx context.Context, input *struct{}) (*ExportProfilesOutput, error) {
	profiles, err := h.profiles.GetAll(ctx)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to list profiles", err)
	}

	doc := profileDocument{Profiles: make([]profileYAML, 0, len(profiles))}
	for _, p := range profiles {
		doc.Profiles = append(doc.Profiles, profileYAML{
			Name:             p.Name,
			Codec:            string(p.Codec),
			Encoder:          p.Encoder,
			Quality:          p.Quality,
			Container:        string(p.Container),
			Resolution:       p.Resolution,
			Framerate:        p.Framerate,
			AudioStrategy:    string(p.AudioStrategy),
			SubtitleStrategy: string(p.SubtitleStrategy),
			EnableFilters:    p.EnableFilters,
			ChapterMarkers:   p.ChapterMarkers,
			HWAccelEnabled:   p.HWAccelEnabled,
			Preset:           p.Preset,
			TwoPass:          p.TwoPass,
			CustomArgs:       p.CustomArgs,
			IsDefault:        p.IsDefault,
		})
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to serialise profiles", err)
	}
	return &ExportProfilesOutput{ContentType: "application/yaml", Body: data}, nil
}

// ImportProfilesInput carries the raw YAML document.
type ImportProfilesInput struct {
	RawBody []byte `contentType:"application/yaml"`
}

// ImportProfilesOutput summarises an import.
type ImportProfilesOutput struct {
	Body struct {
		Created int `json:"created"`
		Updated int `json:"updated"`
	}
}

// Import creates or updates profiles by name from a YAML document.
func (h *ProfileHandler) Import(ctx context.Context, input *ImportProfilesInput) (*ImportProfilesOutput, error) {
	var doc profileDocument
	if err := yaml.Unmarshal(input.RawBody, &doc); err != nil {
		return nil, huma.Error400BadRequest("invalid YAML document", err)
	}
	if len(doc.Profiles) == 0 {
		return nil, huma.Error400BadRequest("document contains no profiles")
	}

	out := &ImportProfilesOutput{}
	for i, y := range doc.Profiles {
		if y.Name == "" {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("profile %d has no name", i))
		}
		existing, err := h.profiles.GetByName(ctx, y.Name)
		if err != nil {
			return nil, huma.Error500InternalServerError("failed to look up profile", err)
		}

		body := ProfileBody{
			Name:             y.Name,
			Codec:            y.Codec,
			Quality:          y.Quality,
			Container:        y.Container,
			Encoder:          y.Encoder,
			Resolution:       y.Resolution,
			Framerate:        y.Framerate,
			AudioStrategy:    y.AudioStrategy,
			SubtitleStrategy: y.SubtitleStrategy,
			EnableFilters:    y.EnableFilters,
			ChapterMarkers:   y.ChapterMarkers,
			HWAccelEnabled:   y.HWAccelEnabled,
			Preset:           y.Preset,
			TwoPass:          y.TwoPass,
			CustomArgs:       y.CustomArgs,
			IsDefault:        y.IsDefault,
		}

		if existing != nil {
			body.apply(existing)
			if err := h.profiles.Update(ctx, existing); err != nil {
				return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("profile %q: %s", y.Name, err))
			}
			out.Body.Updated++
			continue
		}
		profile := &models.Profile{}
		body.apply(profile)
		if err := h.profiles.Create(ctx, profile); err != nil {
			return nil, huma.Error422UnprocessableEntity(fmt.Sprintf("profile %q: %s", y.Name, err))
		}
		out.Body.Created++
	}
	return out, nil
}

func (h *ProfileHandler) lookup(ctx context.Context, rawID string) (*models.Profile, error) {
	id, err := models.ParseULID(rawID)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid profile ID", err)
	}
	profile, err := h.profiles.GetByID(ctx, id)
	if err != nil {
		return nil, huma.Error500InternalServerError("failed to get profile", err)
	}
	if profile == nil {
		return nil, huma.Error404NotFound("profile not found")
	}
	return profile, nil
}
