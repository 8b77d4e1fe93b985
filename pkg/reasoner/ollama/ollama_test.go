package ollama_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/parchmentco/engram/pkg/reasoner"
	"github.com/parchmentco/engram/pkg/reasoner/ollama"
)

var _ = Describe("Reasoner", func() {
	var (
		server  *httptest.Server
		lastReq map[string]any
		status  int
	)

	BeforeEach(func() {
		status = http.StatusOK
		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastReq = map[string]any{}
			Expect(json.NewDecoder(r.Body).Decode(&lastReq)).To(Succeed())
			if status != http.StatusOK {
				w.WriteHeader(status)
				return
			}
			json.NewEncoder(w).Encode(map[string]any{
				"message": map[string]any{"role": "assistant", "content": "hello back"},
				"done":    true,
			})
		}))
	})

	AfterEach(func() {
		server.Close()
	})

	newReasoner := func() *ollama.Reasoner {
		r, err := ollama.NewReasoner(ollama.Config{BaseURL: server.URL, Model: "test-model"})
		Expect(err).NotTo(HaveOccurred())
		return r
	}

	It("returns the assistant message content", func() {
		r := newReasoner()
		out, err := r.Generate(context.Background(), []reasoner.Message{
			{Role: reasoner.RoleUser, Content: "hello"},
		}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("hello back"))
		Expect(lastReq["model"]).To(Equal("test-model"))
		Expect(lastReq["stream"]).To(BeFalse())
	})

	It("requests JSON format in JSON mode", func() {
		r := newReasoner()
		_, err := r.Generate(context.Background(), []reasoner.Message{
			{Role: reasoner.RoleUser, Content: "hello"},
		}, &reasoner.Options{JSONMode: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(lastReq["format"]).To(Equal("json"))
	})

	It("passes temperature through options", func() {
		temp := 0.2
		r := newReasoner()
		_, err := r.Generate(context.Background(), []reasoner.Message{
			{Role: reasoner.RoleUser, Content: "hello"},
		}, &reasoner.Options{Temperature: &temp})
		Expect(err).NotTo(HaveOccurred())
		opts, ok := lastReq["options"].(map[string]any)
		Expect(ok).To(BeTrue())
		Expect(opts["temperature"]).To(BeNumerically("~", 0.2, 1e-9))
	})

	It("wraps HTTP failures in ErrReasoner", func() {
		status = http.StatusBadGateway
		r := newReasoner()
		_, err := r.Generate(context.Background(), []reasoner.Message{
			{Role: reasoner.RoleUser, Content: "hello"},
		}, nil)
		Expect(err).To(MatchError(reasoner.ErrReasoner))
	})
})
