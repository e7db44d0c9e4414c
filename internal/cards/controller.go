package cards

import (
	"encoding/json"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/trackbridge/internal/shared/types"
)

// Cards namespace operations forwarded to the controller and advertised.
var Requests = []string{
	"requestCards",
	"updateCard",
}

// LocalRequests are forwarded to the controller but not advertised.
var LocalRequests = []string{
	"removeCard",
}

// Host receives card notifications.
type Host interface {
	Notify(msg types.Msg, args interface{})
	LoadViewer(cfg map[string]interface{})
}

// Card is the state of one card.
type Card struct {
	Ref  string          `json:"ref"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Controller owns the set of initialised cards.
type Controller struct {
	host   Host
	logger *zap.Logger

	mu           sync.Mutex
	cards        []*Card
	byRef        map[string]*Card
	viewerLoaded bool
}

// NewController creates a controller reporting to host.
func NewController(host Host, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		host:   host,
		logger: logger.Named("cards"),
		byRef:  make(map[string]*Card),
	}
}

// Init initialises every card in refs not seen before. The first Init
// also loads the viewer for the card invites.
func (c *Controller) Init(refs []string) {
	c.mu.Lock()
	var fresh []string
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if _, ok := c.byRef[ref]; ok {
			continue
		}
		card := &Card{Ref: ref}
		c.cards = append(c.cards, card)
		c.byRef[ref] = card
		fresh = append(fresh, ref)
	}
	loadViewer := !c.viewerLoaded && len(c.cards) > 0
	c.viewerLoaded = c.viewerLoaded || loadViewer
	all := c.refsLocked()
	c.mu.Unlock()

	c.host.Notify(types.MsgCardsInitStart, map[string]interface{}{"cards": len(fresh)})
	for _, ref := range fresh {
		c.host.Notify(types.MsgCardInit, map[string]interface{}{"card": ref})
		c.host.Notify(types.MsgCardReady, map[string]interface{}{"card": ref})
	}
	c.host.Notify(types.MsgCardsInitEnd, map[string]interface{}{"cards": all})

	if loadViewer {
		c.host.LoadViewer(map[string]interface{}{"t": strings.Join(all, ";")})
	}
}

// Cards returns the initialised card refs in order.
func (c *Controller) Cards() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refsLocked()
}

func (c *Controller) refsLocked() []string {
	refs := make([]string, len(c.cards))
	for i, card := range c.cards {
		refs[i] = card.Ref
	}
	return refs
}

// Cmd applies a cards command.
func (c *Controller) Cmd(id string, args interface{}) interface{} {
	switch id {
	case "requestCards":
		c.mu.Lock()
		defer c.mu.Unlock()
		out := make([]Card, len(c.cards))
		for i, card := range c.cards {
			out[i] = *card
		}
		return out

	case "updateCard":
		card, err := decodeCard(args)
		if err != nil || card.Ref == "" {
			c.logger.Warn("updateCard rejected", zap.Any("args", args), zap.Error(err))
			return false
		}
		c.mu.Lock()
		if known, ok := c.byRef[card.Ref]; ok {
			known.Data = card.Data
		}
		c.mu.Unlock()

		c.host.Notify(types.MsgDataUpdate, card)
		return nil

	case "removeCard":
		card, err := decodeCard(args)
		if err != nil {
			c.logger.Warn("removeCard rejected", zap.Error(err))
			return false
		}
		c.mu.Lock()
		defer c.mu.Unlock()
		if _, ok := c.byRef[card.Ref]; !ok {
			return false
		}
		delete(c.byRef, card.Ref)
		for i, known := range c.cards {
			if known.Ref == card.Ref {
				c.cards = append(c.cards[:i], c.cards[i+1:]...)
				break
			}
		}
		return nil
	}

	c.logger.Debug("Unknown cmd", zap.String("cmd", id), zap.Any("args", args))
	return nil
}

func decodeCard(args interface{}) (Card, error) {
	switch v := args.(type) {
	case string:
		return Card{Ref: v}, nil
	case Card:
		return v, nil
	case *Card:
		if v == nil {
			return Card{}, nil
		}
		return *v, nil
	}

	var data []byte
	switch v := args.(type) {
	case json.RawMessage:
		data = v
	case []byte:
		data = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return Card{}, err
		}
		data = encoded
	}

	if strings.HasPrefix(strings.TrimSpace(string(data)), `"`) {
		var ref string
		if err := json.Unmarshal(data, &ref); err != nil {
			return Card{}, err
		}
		return Card{Ref: ref}, nil
	}

	var card Card
	if err := json.Unmarshal(data, &card); err != nil {
		return Card{}, err
	}
	return card, nil
}
