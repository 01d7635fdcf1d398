package builtin

import (
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"capgate/internal/domain"
)

const (
	ToolSessionStatus     = "session_status"
	ToolSessionReset      = "session_reset"
	ToolCompositionCreate = "composition_create"
	ToolCompositionAdd    = "composition_add_clip"
	ToolCompositionList   = "composition_list"
	ToolRenderStart       = "render_start"
	ToolRenderStatus      = "render_status"
	ToolRenderCancel      = "render_cancel"
	ToolTTSSpeak          = "tts_speak"
	ToolTTSBatch          = "tts_batch"
	ToolVoicesList        = "voices_list"
	ToolVoicePreview      = "voice_preview"
	ToolImageGenerate     = "image_generate"
	ToolImageEdit         = "image_edit"
	ToolImageUpscale      = "image_upscale"
	ToolAudioSearch       = "audio_search"
	ToolAudioDownload     = "audio_download"
	ToolProcessSpawn      = "process_spawn"
	ToolProcessList       = "process_list"
	ToolProcessKill       = "process_kill"
	ToolSourceParse       = "source_parse"
	ToolSourceRewrite     = "source_rewrite"
)

type emptyArgs struct{}

type compositionCreateArgs struct {
	Name      string  `json:"name" jsonschema:"composition name"`
	Width     int     `json:"width,omitempty" jsonschema:"frame width in pixels"`
	Height    int     `json:"height,omitempty" jsonschema:"frame height in pixels"`
	FPS       float64 `json:"fps,omitempty" jsonschema:"frames per second"`
	DurationS float64 `json:"durationSeconds,omitempty" jsonschema:"total length in seconds"`
}

type compositionAddClipArgs struct {
	CompositionID string  `json:"compositionId" jsonschema:"target composition"`
	Source        string  `json:"source" jsonschema:"media path or URL"`
	StartS        float64 `json:"startSeconds,omitempty" jsonschema:"placement on the timeline"`
	Track         int     `json:"track,omitempty" jsonschema:"track index"`
}

type renderStartArgs struct {
	CompositionID string `json:"compositionId" jsonschema:"composition to render"`
	Format        string `json:"format,omitempty" jsonschema:"mp4, webm or gif"`
	Output        string `json:"output,omitempty" jsonschema:"output file path"`
}

type jobArgs struct {
	JobID string `json:"jobId" jsonschema:"job identifier"`
}

type ttsSpeakArgs struct {
	Text   string `json:"text" jsonschema:"text to narrate"`
	Voice  string `json:"voice,omitempty" jsonschema:"voice id from voices_list"`
	Output string `json:"output,omitempty" jsonschema:"output audio path"`
}

type ttsBatchArgs struct {
	Lines []string `json:"lines" jsonschema:"lines to narrate in order"`
	Voice string   `json:"voice,omitempty" jsonschema:"voice id"`
}

type voicesListArgs struct {
	Language string `json:"language,omitempty" jsonschema:"filter by language code"`
}

type voicePreviewArgs struct {
	Voice string `json:"voice" jsonschema:"voice id"`
}

type imageGenerateArgs struct {
	Prompt string `json:"prompt" jsonschema:"image description"`
	Size   string `json:"size,omitempty" jsonschema:"e.g. 1024x1024"`
	Output string `json:"output,omitempty" jsonschema:"output file path"`
}

type imageEditArgs struct {
	Image  string `json:"image" jsonschema:"source image path"`
	Prompt string `json:"prompt" jsonschema:"edit instructions"`
}

type imageUpscaleArgs struct {
	Image  string `json:"image" jsonschema:"source image path"`
	Factor int    `json:"factor,omitempty" jsonschema:"scale factor, 2 or 4"`
}

type audioSearchArgs struct {
	Query    string  `json:"query" jsonschema:"search terms"`
	MaxSecs  float64 `json:"maxSeconds,omitempty" jsonschema:"maximum clip length"`
	SFXOnly  bool    `json:"sfxOnly,omitempty" jsonschema:"only sound effects"`
	PageSize int     `json:"pageSize,omitempty" jsonschema:"results per page"`
}

type audioDownloadArgs struct {
	ID     string `json:"id" jsonschema:"audio id from audio_search"`
	Output string `json:"output,omitempty" jsonschema:"output file path"`
}

type processSpawnArgs struct {
	Command []string `json:"command" jsonschema:"argv of the process"`
	Cwd     string   `json:"cwd,omitempty" jsonschema:"working directory"`
}

type processKillArgs struct {
	PID int `json:"pid" jsonschema:"process id"`
}

type sourceArgs struct {
	Language string `json:"language" jsonschema:"source language"`
	Source   string `json:"source" jsonschema:"snippet to process"`
}

type sourceRewriteArgs struct {
	Language string `json:"language" jsonschema:"source language"`
	Source   string `json:"source" jsonschema:"snippet to rewrite"`
	Rule     string `json:"rule" jsonschema:"rewrite rule"`
}

func schemaFor[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("builtin schema: %v", err))
	}
	return schema
}

// Tools returns the built-in descriptors with callbacks bound to backend.
// A nil backend means UnconfiguredBackend.
func Tools(backend Backend) []domain.ToolDescriptor {
	if backend == nil {
		backend = UnconfiguredBackend{}
	}
	tools := []domain.ToolDescriptor{
		{
			Name: ToolSessionStatus, Description: "Report the active tool set, context budget and layers.",
			InputSchema: schemaFor[emptyArgs](), Category: domain.CategoryCore, SubCategory: "session",
			Tags: []string{"session", "status", "budget"}, EstimatedTokens: 120, LoadByDefault: true, Priority: 100,
		},
		{
			Name: ToolSessionReset, Description: "Reset working state held by the creative backends for this session.",
			InputSchema: schemaFor[emptyArgs](), Category: domain.CategoryCore, SubCategory: "session",
			Tags: []string{"session", "reset"}, EstimatedTokens: 110, Priority: 40,
		},
		{
			Name: ToolCompositionCreate, Description: "Create a video composition with resolution, frame rate and length.",
			InputSchema: schemaFor[compositionCreateArgs](), Category: domain.CategoryVideoCreation, SubCategory: "composition",
			Tags: []string{"video", "timeline", "composition"}, EstimatedTokens: 380, Priority: 70,
		},
		{
			Name: ToolCompositionAdd, Description: "Place a media clip on a composition track.",
			InputSchema: schemaFor[compositionAddClipArgs](), Category: domain.CategoryVideoCreation, SubCategory: "composition",
			Tags: []string{"video", "timeline", "clip"}, EstimatedTokens: 340, Priority: 60,
			DependsOn: []string{ToolCompositionCreate},
		},
		{
			Name: ToolCompositionList, Description: "List compositions in the current project.",
			InputSchema: schemaFor[emptyArgs](), Category: domain.CategoryVideoCreation, SubCategory: "composition",
			Tags: []string{"video", "composition"}, EstimatedTokens: 150, Priority: 30,
		},
		{
			Name: ToolRenderStart, Description: "Render a composition to a video file and return a job id.",
			InputSchema: schemaFor[renderStartArgs](), Category: domain.CategoryVideoCreation, SubCategory: "rendering",
			Tags: []string{"video", "render", "export"}, EstimatedTokens: 360, Priority: 80,
			DependsOn: []string{ToolCompositionCreate},
		},
		{
			Name: ToolRenderStatus, Description: "Poll progress of a render job.",
			InputSchema: schemaFor[jobArgs](), Category: domain.CategoryVideoCreation, SubCategory: "rendering",
			Tags: []string{"render", "progress"}, EstimatedTokens: 160, Priority: 50,
		},
		{
			Name: ToolRenderCancel, Description: "Cancel a running render job.",
			InputSchema: schemaFor[jobArgs](), Category: domain.CategoryVideoCreation, SubCategory: "rendering",
			Tags: []string{"render"}, EstimatedTokens: 140, Priority: 20,
		},
		{
			Name: ToolTTSSpeak, Description: "Synthesize narration audio from text with a chosen voice.",
			InputSchema: schemaFor[ttsSpeakArgs](), Category: domain.CategorySpeech, SubCategory: "synthesis",
			Tags: []string{"voice", "narration", "tts", "audio"}, EstimatedTokens: 320, Priority: 80,
			DependsOn: []string{ToolVoicesList},
		},
		{
			Name: ToolTTSBatch, Description: "Synthesize several narration lines into numbered audio files.",
			InputSchema: schemaFor[ttsBatchArgs](), Category: domain.CategorySpeech, SubCategory: "synthesis",
			Tags: []string{"voice", "narration", "tts", "batch"}, EstimatedTokens: 300, Priority: 40,
			DependsOn: []string{ToolVoicesList},
		},
		{
			Name: ToolVoicesList, Description: "List available synthesis voices.",
			InputSchema: schemaFor[voicesListArgs](), Category: domain.CategorySpeech, SubCategory: "voices",
			Tags: []string{"voice", "speaker"}, EstimatedTokens: 180, Priority: 60,
		},
		{
			Name: ToolVoicePreview, Description: "Produce a short sample of a voice.",
			InputSchema: schemaFor[voicePreviewArgs](), Category: domain.CategorySpeech, SubCategory: "voices",
			Tags: []string{"voice", "sample"}, EstimatedTokens: 170, Priority: 20,
		},
		{
			Name: ToolImageGenerate, Description: "Generate an image from a text prompt.",
			InputSchema: schemaFor[imageGenerateArgs](), Category: domain.CategoryImageGeneration, SubCategory: "generate",
			Tags: []string{"image", "picture", "thumbnail", "art"}, EstimatedTokens: 340, Priority: 80,
		},
		{
			Name: ToolImageEdit, Description: "Edit an existing image following instructions.",
			InputSchema: schemaFor[imageEditArgs](), Category: domain.CategoryImageGeneration, SubCategory: "edit",
			Tags: []string{"image", "edit", "inpaint"}, EstimatedTokens: 300, Priority: 50,
		},
		{
			Name: ToolImageUpscale, Description: "Upscale an image by a fixed factor.",
			InputSchema: schemaFor[imageUpscaleArgs](), Category: domain.CategoryImageGeneration, SubCategory: "edit",
			Tags: []string{"image", "upscale"}, EstimatedTokens: 220, Priority: 30,
		},
		{
			Name: ToolAudioSearch, Description: "Search royalty-free music and sound effects.",
			InputSchema: schemaFor[audioSearchArgs](), Category: domain.CategoryAudioLibrary, SubCategory: "search",
			Tags: []string{"music", "sfx", "audio", "sound"}, EstimatedTokens: 300, Priority: 70,
		},
		{
			Name: ToolAudioDownload, Description: "Download a library track found by audio_search.",
			InputSchema: schemaFor[audioDownloadArgs](), Category: domain.CategoryAudioLibrary, SubCategory: "search",
			Tags: []string{"music", "sfx", "download"}, EstimatedTokens: 200, Priority: 50,
			DependsOn: []string{ToolAudioSearch},
		},
		{
			Name: ToolProcessSpawn, Description: "Start a helper process and return its pid.",
			InputSchema: schemaFor[processSpawnArgs](), Category: domain.CategoryProcess, SubCategory: "lifecycle",
			Tags: []string{"process", "spawn", "preview"}, EstimatedTokens: 260, Priority: 50,
		},
		{
			Name: ToolProcessList, Description: "List helper processes started in this session.",
			InputSchema: schemaFor[emptyArgs](), Category: domain.CategoryProcess, SubCategory: "lifecycle",
			Tags: []string{"process"}, EstimatedTokens: 130, Priority: 30,
		},
		{
			Name: ToolProcessKill, Description: "Stop a helper process.",
			InputSchema: schemaFor[processKillArgs](), Category: domain.CategoryProcess, SubCategory: "lifecycle",
			Tags: []string{"process", "kill"}, EstimatedTokens: 140, Priority: 30,
			DependsOn: []string{ToolProcessList},
		},
		{
			Name: ToolSourceParse, Description: "Parse a source snippet and report its syntax tree summary.",
			InputSchema: schemaFor[sourceArgs](), Category: domain.CategorySourceEditing, SubCategory: "rewrite",
			Tags: []string{"code", "parse", "ast"}, EstimatedTokens: 240, Priority: 40,
		},
		{
			Name: ToolSourceRewrite, Description: "Rewrite a source snippet with a structural rule.",
			InputSchema: schemaFor[sourceRewriteArgs](), Category: domain.CategorySourceEditing, SubCategory: "rewrite",
			Tags: []string{"code", "rewrite", "refactor"}, EstimatedTokens: 280, Priority: 50,
			DependsOn: []string{ToolSourceParse},
		},
	}
	for i := range tools {
		tools[i].Handler = bind(backend, tools[i].Name)
	}
	return tools
}
