// Package s3test runs an in-memory, path-style S3 endpoint that verifies
// legacy v2 signatures. It is meant for tests of code built on
// storage.RESTClient.
package s3test

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/xml"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"

	"github.com/andresuchdata/s3master/internal/storage"
)

// RecordedRequest is a request the server accepted for processing.
type RecordedRequest struct {
	Method        string
	RequestURI    string
	ContentType   string
	Date          string
	Authorization string
	Body          []byte
}

type object struct {
	body         []byte
	contentType  string
	etag         string
	lastModified time.Time
}

type bucket struct {
	region  string
	created time.Time
	objects map[string]*object
}

type injected struct {
	status  int
	code    string
	message string
}

// Server is a fake S3 service. The zero value is not usable; call NewServer.
type Server struct {
	mu       sync.Mutex
	keys     map[string]string
	buckets  map[string]*bucket
	requests []RecordedRequest
	failures []injected
	now      func() time.Time

	srv *httptest.Server
}

// NewServer starts a server that accepts requests signed by any of creds.
func NewServer(creds ...storage.Credentials) *Server {
	s := &Server{
		keys:    make(map[string]string),
		buckets: make(map[string]*bucket),
		now:     time.Now,
	}
	for _, c := range creds {
		s.keys[c.AccessKeyID] = c.SecretAccessKey
	}
	s.srv = httptest.NewServer(s.router())
	return s
}

// URL is the endpoint to hand to storage.WithEndpoint.
func (s *Server) URL() string { return s.srv.URL }

// Close shuts the server down.
func (s *Server) Close() { s.srv.Close() }

// Allow accepts signatures made with c from now on.
func (s *Server) Allow(c storage.Credentials) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[c.AccessKeyID] = c.SecretAccessKey
}

// FailNext makes the next authenticated request answer with an S3 error
// document instead of being processed.
func (s *Server) FailNext(status int, code, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, injected{status: status, code: code, message: message})
}

// Requests returns a copy of every request seen so far.
func (s *Server) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]RecordedRequest, len(s.requests))
	copy(out, s.requests)
	return out
}

// BucketRegion returns the location constraint a bucket was created with.
func (s *Server) BucketRegion(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		return "", false
	}
	return b.region, true
}

// Object returns a stored object's body and content type.
func (s *Server) Object(bucketName, key string) ([]byte, string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[bucketName]
	if !ok {
		return nil, "", false
	}
	o, ok := b.objects[key]
	if !ok {
		return nil, "", false
	}
	return append([]byte(nil), o.body...), o.contentType, true
}

func (s *Server) router() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/", s.authenticated(s.listBuckets)).Methods(http.MethodGet)
	r.HandleFunc("/{bucket}", s.authenticated(s.createBucket)).Methods(http.MethodPut)
	r.HandleFunc("/{bucket}", s.authenticated(s.deleteBucket)).Methods(http.MethodDelete)
	r.HandleFunc("/{bucket}", s.authenticated(s.listObjects)).Methods(http.MethodGet)
	r.HandleFunc("/{bucket}/{key:.+}", s.authenticated(s.putObject)).Methods(http.MethodPut)
	r.HandleFunc("/{bucket}/{key:.+}", s.authenticated(s.getObject)).Methods(http.MethodGet)
	r.HandleFunc("/{bucket}/{key:.+}", s.authenticated(s.deleteObject)).Methods(http.MethodDelete)
	return r
}

func (s *Server) authenticated(next func(w http.ResponseWriter, r *http.Request, body []byte)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "IncompleteBody", err.Error())
			return
		}

		rec := RecordedRequest{
			Method:        r.Method,
			RequestURI:    r.RequestURI,
			ContentType:   r.Header.Get("Content-Type"),
			Date:          r.Header.Get("Date"),
			Authorization: r.Header.Get("Authorization"),
			Body:          body,
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		secret, known := s.keys[accessKeyOf(rec.Authorization)]
		var fail *injected
		if known && len(s.failures) > 0 {
			fail = &s.failures[0]
			s.failures = s.failures[1:]
		}
		s.mu.Unlock()

		if !strings.HasPrefix(rec.Authorization, "AWS ") || !known {
			writeError(w, http.StatusForbidden, "InvalidAccessKeyId", "The AWS Access Key Id you provided does not exist in our records.")
			return
		}
		sts := storage.NewStringToSign(r.Method, r.RequestURI, rec.ContentType, body, rec.Date)
		want := storage.AuthorizationHeader(accessKeyOf(rec.Authorization), storage.Sign(secret, sts))
		if want != rec.Authorization {
			writeError(w, http.StatusForbidden, "SignatureDoesNotMatch", "The request signature we calculated does not match the signature you provided.")
			return
		}
		if fail != nil {
			writeError(w, fail.status, fail.code, fail.message)
			return
		}
		next(w, r, body)
	}
}

func accessKeyOf(authorization string) string {
	rest := strings.TrimPrefix(authorization, "AWS ")
	id, _, _ := strings.Cut(rest, ":")
	return id
}

type bucketXML struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

type listAllMyBucketsResult struct {
	XMLName xml.Name    `xml:"ListAllMyBucketsResult"`
	Xmlns   string      `xml:"xmlns,attr"`
	Buckets []bucketXML `xml:"Buckets>Bucket"`
}

type contentsXML struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int    `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type listBucketResult struct {
	XMLName     xml.Name      `xml:"ListBucketResult"`
	Xmlns       string        `xml:"xmlns,attr"`
	Name        string        `xml:"Name"`
	Prefix      string        `xml:"Prefix"`
	IsTruncated bool          `xml:"IsTruncated"`
	Contents    []contentsXML `xml:"Contents"`
}

type createBucketConfiguration struct {
	LocationConstraint string `xml:"LocationConstraint"`
}

type errorXML struct {
	XMLName xml.Name `xml:"Error"`
	Code    string   `xml:"Code"`
	Message string   `xml:"Message"`
}

const namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

func (s *Server) listBuckets(w http.ResponseWriter, _ *http.Request, _ []byte) {
	s.mu.Lock()
	res := listAllMyBucketsResult{Xmlns: namespace}
	for name, b := range s.buckets {
		res.Buckets = append(res.Buckets, bucketXML{Name: name, CreationDate: b.created.UTC().Format(time.RFC3339)})
	}
	s.mu.Unlock()
	sort.Slice(res.Buckets, func(i, j int) bool { return res.Buckets[i].Name < res.Buckets[j].Name })
	writeXML(w, http.StatusOK, res)
}

func (s *Server) createBucket(w http.ResponseWriter, r *http.Request, body []byte) {
	name := mux.Vars(r)["bucket"]
	region := storage.DefaultRegion
	if len(body) > 0 {
		var cfg createBucketConfiguration
		if err := xml.Unmarshal(body, &cfg); err != nil {
			writeError(w, http.StatusBadRequest, "MalformedXML", "The XML you provided was not well-formed.")
			return
		}
		region = cfg.LocationConstraint
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[name]; ok {
		writeError(w, http.StatusConflict, storage.CodeBucketAlreadyExists, "The requested bucket name is not available.")
		return
	}
	s.buckets[name] = &bucket{region: region, created: s.now(), objects: make(map[string]*object)}
	w.Header().Set("Location", "/"+name)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) deleteBucket(w http.ResponseWriter, r *http.Request, _ []byte) {
	name := mux.Vars(r)["bucket"]

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[name]
	if !ok {
		writeError(w, http.StatusNotFound, storage.CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}
	if len(b.objects) > 0 {
		writeError(w, http.StatusConflict, "BucketNotEmpty", "The bucket you tried to delete is not empty")
		return
	}
	delete(s.buckets, name)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listObjects(w http.ResponseWriter, r *http.Request, _ []byte) {
	name := mux.Vars(r)["bucket"]
	prefix := r.URL.Query().Get("prefix")

	s.mu.Lock()
	b, ok := s.buckets[name]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, storage.CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}
	res := listBucketResult{Xmlns: namespace, Name: name, Prefix: prefix}
	for key, o := range b.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		res.Contents = append(res.Contents, contentsXML{
			Key:          key,
			LastModified: o.lastModified.UTC().Format("2006-01-02T15:04:05.000Z"),
			ETag:         `"` + o.etag + `"`,
			Size:         len(o.body),
			StorageClass: "STANDARD",
		})
	}
	s.mu.Unlock()
	sort.Slice(res.Contents, func(i, j int) bool { return res.Contents[i].Key < res.Contents[j].Key })
	writeXML(w, http.StatusOK, res)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, body []byte) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[vars["bucket"]]
	if !ok {
		writeError(w, http.StatusNotFound, storage.CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}
	sum := md5.Sum(body)
	o := &object{
		body:         append([]byte(nil), body...),
		contentType:  r.Header.Get("Content-Type"),
		etag:         hex.EncodeToString(sum[:]),
		lastModified: s.now(),
	}
	b.objects[vars["key"]] = o
	w.Header().Set("ETag", `"`+o.etag+`"`)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) getObject(w http.ResponseWriter, r *http.Request, _ []byte) {
	vars := mux.Vars(r)

	s.mu.Lock()
	b, ok := s.buckets[vars["bucket"]]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusNotFound, storage.CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}
	o, ok := b.objects[vars["key"]]
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, storage.CodeNoSuchKey, "The specified key does not exist.")
		return
	}
	if o.contentType != "" {
		w.Header().Set("Content-Type", o.contentType)
	}
	w.Header().Set("ETag", `"`+o.etag+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(o.body)
}

func (s *Server) deleteObject(w http.ResponseWriter, r *http.Request, _ []byte) {
	vars := mux.Vars(r)

	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.buckets[vars["bucket"]]
	if !ok {
		writeError(w, http.StatusNotFound, storage.CodeNoSuchBucket, "The specified bucket does not exist")
		return
	}
	delete(b.objects, vars["key"])
	w.WriteHeader(http.StatusNoContent)
}

func writeXML(w http.ResponseWriter, status int, v any) {
	out, err := xml.Marshal(v)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "InternalError", err.Error())
		return
	}
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	out, _ := xml.Marshal(errorXML{Code: code, Message: message})
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(xml.Header))
	_, _ = w.Write(out)
}
