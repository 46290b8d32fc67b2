package flow

import (
	"context"
	"sync"
	"testing"

	"github.com/BTreeMap/AgentMint/internal/models"
)

const testWallet = "0x52908400098527886E0F7030069857D2E4169EE7"

type sentReply struct {
	To       string
	Body     string
	Markdown bool
}

// mockMessenger records every reply sent by the flow.
type mockMessenger struct {
	mu      sync.Mutex
	replies []sentReply
	err     error
}

func (m *mockMessenger) SendMessage(ctx context.Context, to, body string) error {
	return m.record(to, body, false)
}

func (m *mockMessenger) SendMarkdown(ctx context.Context, to, body string) error {
	return m.record(to, body, true)
}

func (m *mockMessenger) record(to, body string, markdown bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, sentReply{To: to, Body: body, Markdown: markdown})
	return m.err
}

// take returns the replies recorded since the last call.
func (m *mockMessenger) take() []sentReply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := m.replies
	m.replies = nil
	return out
}

func bodies(replies []sentReply) []string {
	out := make([]string, len(replies))
	for i, r := range replies {
		out[i] = r.Body
	}
	return out
}

type mockGenerator struct {
	mu      sync.Mutex
	url     string
	err     error
	prompts []string
}

func (g *mockGenerator) GenerateImage(ctx context.Context, prompt string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.prompts = append(g.prompts, prompt)
	if g.err != nil {
		return "", g.err
	}
	return g.url, nil
}

func (g *mockGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.prompts)
}

type mockPinner struct {
	url    string
	err    error
	images []string
}

func (p *mockPinner) PinImage(ctx context.Context, imageURL string) (string, error) {
	p.images = append(p.images, imageURL)
	if p.err != nil {
		return "", p.err
	}
	return p.url, nil
}

type mintCall struct {
	Wallet      string
	MetadataURL string
}

type mockMinter struct {
	hash  string
	err   error
	calls []mintCall
}

func (m *mockMinter) MintNFT(ctx context.Context, wallet, metadataURL string) (string, error) {
	m.calls = append(m.calls, mintCall{Wallet: wallet, MetadataURL: metadataURL})
	if m.err != nil {
		return "", m.err
	}
	return m.hash, nil
}

type mockMintRecorder struct {
	records []models.MintRecord
}

func (r *mockMintRecorder) AddMintRecord(rec models.MintRecord) error {
	r.records = append(r.records, rec)
	return nil
}

type flowFixture struct {
	flow     *AgentFlow
	msg      *mockMessenger
	images   *mockGenerator
	pinner   *mockPinner
	minter   *mockMinter
	recorder *mockMintRecorder
}

func newFlowFixture(opts ...Option) *flowFixture {
	fx := &flowFixture{
		msg:      &mockMessenger{},
		images:   &mockGenerator{url: "https://fal.media/files/agent.png"},
		pinner:   &mockPinner{url: "https://gateway.pinata.cloud/ipfs/QmAgent"},
		minter:   &mockMinter{hash: "0xabc123"},
		recorder: &mockMintRecorder{},
	}
	opts = append([]Option{WithMintRecorder(fx.recorder), WithExplorerURL("https://explorer.test")}, opts...)
	fx.flow = NewAgentFlow(fx.msg, fx.images, fx.pinner, fx.minter, opts...)
	return fx
}

// send delivers text and returns the reply bodies it produced.
func (fx *flowFixture) send(t *testing.T, pid, text string) []string {
	t.Helper()
	if err := fx.flow.HandleMessage(context.Background(), pid, text); err != nil {
		t.Fatalf("HandleMessage(%q) returned error: %v", text, err)
	}
	return bodies(fx.msg.take())
}

func (fx *flowFixture) session(pid string) models.Session {
	s, _ := fx.flow.Sessions().Snapshot(pid)
	return s
}
