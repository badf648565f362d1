// Package transfertest provides an in-process file server speaking the
// upload/download protocol, with hooks for injecting faults.
package transfertest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"
)

type Fault int

const (
	FaultNone       Fault = iota
	FaultStatus           // 500 instead of 206
	FaultTruncate         // correct Content-Range, half the body
	FaultWrongRange       // Content-Range shifted by one byte
	FaultCorrupt          // correct headers, one byte flipped
	FaultFullBody         // ignore Range and answer 200 with the whole file
	FaultStall            // hold the response for the configured stall duration
)

type Server struct {
	*httptest.Server

	mu            sync.Mutex
	files         map[string][]byte
	rangeFaults   map[int]Fault
	rangeRequests int
	ranges        []string
	noHead        bool
	failUploads   int
	corruptNext   int
	uploads       int
	deletes       int
	advertised    map[string]int64
	stall         time.Duration
	stallNext     int
}

func NewServer() *Server {
	s := &Server{
		files:       make(map[string][]byte),
		rangeFaults: make(map[int]Fault),
		advertised:  make(map[string]int64),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /upload", s.handleMultipart)
	mux.HandleFunc("PUT /{name}", s.handlePut)
	mux.HandleFunc("DELETE /{name}", s.handleDelete)
	mux.HandleFunc("GET /download/{name}", s.handleDownload)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) Put(name string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[name] = append([]byte(nil), data...)
}

func (s *Server) File(name string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.files[name]
	return data, ok
}

// InjectRangeFault applies f to the ordinal-th (0-based) ranged GET.
func (s *Server) InjectRangeFault(ordinal int, f Fault) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rangeFaults[ordinal] = f
}

// DisableHead makes HEAD requests answer 405 so clients must probe differently.
func (s *Server) DisableHead() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noHead = true
}

// AdvertiseSize makes HEAD report size for name regardless of the stored data.
func (s *Server) AdvertiseSize(name string, size int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.advertised[name] = size
}

// SetStall sets how long FaultStall ranged GETs and stalled whole GETs wait
// before answering.
func (s *Server) SetStall(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stall = d
}

// StallNextDownloads holds the next n whole-file GETs for the stall duration.
func (s *Server) StallNextDownloads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stallNext = n
}

func (s *Server) FailNextUploads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failUploads = n
}

// CorruptNextDownloads flips a byte in the next n whole-file downloads.
func (s *Server) CorruptNextDownloads(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.corruptNext = n
}

// Ranges lists the Range headers received, in arrival order.
func (s *Server) Ranges() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.ranges...)
}

func (s *Server) Uploads() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.uploads
}

func (s *Server) Deletes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deletes
}

func (s *Server) acceptUpload() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.uploads++
	if s.failUploads > 0 {
		s.failUploads--
		return false
	}
	return true
}

func (s *Server) handleMultipart(w http.ResponseWriter, r *http.Request) {
	if !s.acceptUpload() {
		http.Error(w, "upload rejected", http.StatusInternalServerError)
		return
	}
	reader, err := r.MultipartReader()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for {
		part, err := reader.NextPart()
		if err == io.EOF {
			http.Error(w, "missing file field", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if part.FormName() != "file" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		s.Put(part.FileName(), data)
		w.WriteHeader(http.StatusOK)
		return
	}
}

func (s *Server) handlePut(w http.ResponseWriter, r *http.Request) {
	if !s.acceptUpload() {
		http.Error(w, "upload rejected", http.StatusInternalServerError)
		return
	}
	data, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.Put(r.PathValue("name"), data)
	w.WriteHeader(http.StatusCreated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	name := r.PathValue("name")
	if _, ok := s.files[name]; !ok {
		http.NotFound(w, r)
		return
	}
	delete(s.files, name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	if r.Method == http.MethodHead && s.noHead {
		s.mu.Unlock()
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	data, ok := s.files[r.PathValue("name")]
	advertised, override := s.advertised[r.PathValue("name")]
	rangeHeader := r.Header.Get("Range")
	fault := FaultNone
	corrupt := false
	var stall time.Duration
	if r.Method == http.MethodGet {
		if rangeHeader != "" {
			fault = s.rangeFaults[s.rangeRequests]
			s.rangeRequests++
			s.ranges = append(s.ranges, rangeHeader)
			if fault == FaultStall {
				stall = s.stall
			}
		} else {
			if s.corruptNext > 0 {
				s.corruptNext--
				corrupt = true
			}
			if s.stallNext > 0 {
				s.stallNext--
				stall = s.stall
			}
		}
	}
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	if r.Method == http.MethodHead && override {
		w.Header().Set("Content-Length", strconv.FormatInt(advertised, 10))
		w.WriteHeader(http.StatusOK)
		return
	}
	if stall > 0 {
		select {
		case <-time.After(stall):
		case <-r.Context().Done():
			return
		}
	}
	w.Header().Set("Accept-Ranges", "bytes")
	total := int64(len(data))

	if rangeHeader == "" || fault == FaultFullBody {
		body := data
		if corrupt && len(body) > 0 {
			body = flip(body)
		}
		w.Header().Set("Content-Length", strconv.FormatInt(total, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			w.Write(body)
		}
		return
	}

	start, end, err := parseRange(rangeHeader, total)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", total))
		w.WriteHeader(http.StatusRequestedRangeNotSatisfiable)
		return
	}
	body := data[start : end+1]
	headerStart, headerEnd := start, end
	switch fault {
	case FaultStatus:
		http.Error(w, "injected failure", http.StatusInternalServerError)
		return
	case FaultTruncate:
		body = body[:len(body)/2]
	case FaultWrongRange:
		headerStart++
		body = body[min(1, len(body)):]
	case FaultCorrupt:
		body = flip(body)
	}
	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", headerStart, headerEnd, total))
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusPartialContent)
	w.Write(body)
}

func flip(data []byte) []byte {
	out := append([]byte(nil), data...)
	out[len(out)/2] ^= 0xff
	return out
}

// parseRange handles the single "bytes=start-end" form clients send.
func parseRange(header string, total int64) (int64, int64, error) {
	rest, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	first, last, ok := strings.Cut(rest, "-")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range %q", header)
	}
	start, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return 0, 0, err
	}
	end := total - 1
	if last != "" {
		if end, err = strconv.ParseInt(last, 10, 64); err != nil {
			return 0, 0, err
		}
	}
	if start >= total || end < start {
		return 0, 0, fmt.Errorf("unsatisfiable range %q", header)
	}
	return start, min(end, total-1), nil
}
