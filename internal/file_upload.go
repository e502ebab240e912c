package internal

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"roomchat/internal/rooms"
)

const multipartMemory = 8 << 20

var (
	errNoFile        = errors.New("No file selected")
	errInvalidRoom   = errors.New("Invalid room")
	errNameMissing   = errors.New("Name required")
	errFileTooLarge  = errors.New("File too large")
	errMessageFailed = errors.New("Failed to save message")
)

// allowedTypes lists the accepted extensions per attachment kind, in the
// order they are reported back to users.
var allowedTypes = []struct {
	fileType   rooms.FileType
	extensions []string
}{
	{rooms.FileImage, []string{"png", "jpg", "jpeg", "gif", "webp", "bmp", "svg"}},
	{rooms.FileAudio, []string{"mp3", "wav", "ogg", "m4a"}},
	{rooms.FileVideo, []string{"mp4", "avi", "mov", "webm"}},
	{rooms.FileDocument, []string{"pdf", "doc", "docx", "txt", "ppt", "pptx", "xls", "xlsx", "zip", "rar", "7z", "tar", "gz"}},
}

var unsafeFilenameChars = regexp.MustCompile(`[^A-Za-z0-9_.-]`)

// classifyFile maps a filename's extension to its attachment kind.
func classifyFile(filename string) (rooms.FileType, bool) {
	ext := fileExtension(filename)
	if ext == "" {
		return "", false
	}
	for _, group := range allowedTypes {
		for _, candidate := range group.extensions {
			if candidate == ext {
				return group.fileType, true
			}
		}
	}
	return "", false
}

func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

func allowedExtensions() []string {
	var all []string
	for _, group := range allowedTypes {
		all = append(all, group.extensions...)
	}
	return all
}

// acceptAttribute renders the extension list for an <input accept=...>.
func acceptAttribute() string {
	exts := allowedExtensions()
	for i, ext := range exts {
		exts[i] = "." + ext
	}
	return strings.Join(exts, ",")
}

// sanitizeFilename reduces a client-supplied name to a flat, ASCII-only file
// name. Path separators become underscores so nothing escapes the upload
// directory; the result may be empty.
func sanitizeFilename(name string) string {
	name = strings.NewReplacer("/", " ", "\\", " ").Replace(name)
	name = strings.Join(strings.Fields(name), "_")
	name = unsafeFilenameChars.ReplaceAllString(name, "")
	return strings.Trim(name, "._")
}

// UploadHandler accepts attachments, stores them under uploadDir and posts a
// file message into the target room.
type UploadHandler struct {
	store       *rooms.Store
	hub         *Hub
	uploadDir   string
	maxFileSize int64
	metrics     *Metrics
}

func NewUploadHandler(store *rooms.Store, hub *Hub, uploadDir string, maxFileSize int64, metrics *Metrics) *UploadHandler {
	return &UploadHandler{
		store:       store,
		hub:         hub,
		uploadDir:   uploadDir,
		maxFileSize: maxFileSize,
		metrics:     metrics,
	}
}

// HandleUpload validates everything before touching the disk: file present,
// extension allowed, room exists, name present. Room and name fall back to
// the session binding when the form leaves them out.
func (h *UploadHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize)
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || r.ContentLength > h.maxFileSize {
			writeError(w, http.StatusRequestEntityTooLarge, errFileTooLarge)
			return
		}
		writeError(w, http.StatusBadRequest, errNoFile)
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil || header.Filename == "" || header.Size == 0 {
		writeError(w, http.StatusBadRequest, errNoFile)
		return
	}
	defer file.Close()

	fileType, ok := classifyFile(header.Filename)
	if !ok {
		writeError(w, http.StatusBadRequest,
			fmt.Errorf("File type not allowed. Allowed types: %s", strings.Join(allowedExtensions(), ", ")))
		return
	}

	binding, _ := BindingFromContext(r.Context())
	room := rooms.NormalizeCode(r.FormValue("room"))
	if room == "" {
		room = binding.Room
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		name = binding.Name
	}
	if room == "" || !h.store.Exists(room) {
		writeError(w, http.StatusBadRequest, errInvalidRoom)
		return
	}
	if name == "" {
		writeError(w, http.StatusBadRequest, errNameMissing)
		return
	}

	filename := sanitizeFilename(header.Filename)
	if fileExtension(filename) != fileExtension(header.Filename) {
		filename = "upload." + fileExtension(header.Filename)
	}
	stored := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + filename
	storagePath := filepath.Join(h.uploadDir, stored)

	digest, written, err := h.save(storagePath, file)
	if err != nil {
		log.Error().Err(err).Str("path", storagePath).Msg("save upload")
		writeError(w, http.StatusInternalServerError, fmt.Errorf("Failed to save file: %w", err))
		return
	}

	fileURL := uploadURLPrefix + stored
	msg := rooms.NewFileMessage(name, fileURL, fileType, filename, strings.TrimSpace(r.FormValue("message")))
	if err := h.hub.Publish(r.Context(), room, msg); err != nil {
		if errors.Is(err, rooms.ErrRoomNotFound) {
			_ = os.Remove(storagePath)
			writeError(w, http.StatusBadRequest, errInvalidRoom)
			return
		}
		log.Error().Err(err).Str("room", room).Msg("persist file message")
		writeError(w, http.StatusInternalServerError, errMessageFailed)
		return
	}
	h.metrics.AddUpload(written)
	log.Info().
		Str("room", room).
		Str("name", name).
		Str("file", stored).
		Int64("size", written).
		Str("sha256", digest).
		Msg("file uploaded")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"fileUrl": fileURL,
		"message": "File uploaded successfully",
	})
}

func (h *UploadHandler) save(storagePath string, src io.Reader) (string, int64, error) {
	if err := os.MkdirAll(filepath.Dir(storagePath), 0o755); err != nil {
		return "", 0, err
	}
	destFile, err := os.Create(storagePath)
	if err != nil {
		return "", 0, err
	}
	hasher := sha256.New()
	written, err := io.Copy(io.MultiWriter(destFile, hasher), src)
	if closeErr := destFile.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(storagePath)
		return "", 0, err
	}
	return hex.EncodeToString(hasher.Sum(nil)), written, nil
}
