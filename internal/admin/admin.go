package admin

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/opendap-hyrax/besd/internal/errs"
)

// Controller is the supervisor-side surface the admin handler drives.
// internal/supervisor implements this; keeping it as an interface here
// lets the command table be tested without a real process tree.
type Controller interface {
	StopMasterNow() error
	StartMaster() error
	ExitSupervisor() error

	ConfigModules() []string
	ReadConfig(module string) (string, error)
	WriteConfig(module, content string) error

	TailLog(lines int) (string, error)

	LogContexts() map[string]bool
	SetLogContext(name string, on bool)

	StatusText() string
}

// Handler processes one BesAdminCmd document at a time. Signals must be
// blocked by the caller for the duration of Handle (spec §4.7); that is
// a process-wide concern the supervisor owns, not this package.
type Handler struct {
	Ctrl Controller
}

// New builds a Handler bound to ctrl.
func New(ctrl Controller) *Handler {
	return &Handler{Ctrl: ctrl}
}

// Handle parses body as a BesAdminCmd document and processes its direct
// children one at a time, in document order (spec §4.7 "Processes
// children in document order"), returning the serialized response
// document. exitRequested is true only when an Exit child was processed
// — the caller must close the admin session after sending the response.
func (h *Handler) Handle(body []byte) (response []byte, exitRequested bool) {
	dec := xml.NewDecoder(bytes.NewReader(compactXML(body)))
	doc := newResponseDoc()

	root, err := nextStartElement(dec)
	if err != nil || root.Name.Local != "BesAdminCmd" {
		doc.besError("SyntaxUser", "malformed BesAdminCmd document")
		return doc.bytes(), false
	}

	for {
		child, err := nextStartElement(dec)
		if err == io.EOF {
			break
		}
		if err != nil {
			doc.besError("SyntaxUser", "malformed BesAdminCmd document: "+err.Error())
			break
		}
		exit := h.dispatch(dec, child, doc)
		if exit {
			exitRequested = true
			break
		}
	}

	return doc.bytes(), exitRequested
}

// dispatch decodes one child element fully (DecodeElement consumes
// through its matching EndElement) and applies its effect, in the order
// commands appear in the document.
func (h *Handler) dispatch(dec *xml.Decoder, start xml.StartElement, doc *responseDoc) (exit bool) {
	switch start.Name.Local {
	case "StopNow":
		_ = dec.Skip()
		if err := h.Ctrl.StopMasterNow(); err != nil {
			doc.besError(errorKind(err), err.Error())
		} else {
			doc.ok()
		}
	case "Start":
		_ = dec.Skip()
		if err := h.Ctrl.StartMaster(); err != nil {
			doc.besError(errorKind(err), err.Error())
		} else {
			doc.ok()
		}
	case "Exit":
		_ = dec.Skip()
		if err := h.Ctrl.ExitSupervisor(); err != nil {
			doc.besError(errorKind(err), err.Error())
			return false
		}
		return true
	case "GetConfig":
		_ = dec.Skip()
		for _, m := range h.Ctrl.ConfigModules() {
			content, err := h.Ctrl.ReadConfig(m)
			if err != nil {
				doc.besError(errorKind(err), err.Error())
				continue
			}
			doc.besConfig(m, content)
		}
	case "SetConfig":
		var cmd SetConfigCmd
		if err := dec.DecodeElement(&cmd, &start); err != nil {
			doc.besError("SyntaxUser", "malformed SetConfig element")
			break
		}
		if cmd.Module == "" {
			doc.besError("SyntaxUser", "SetConfig missing module")
		} else if err := h.Ctrl.WriteConfig(cmd.Module, cmd.Content); err != nil {
			doc.besError(errorKind(err), err.Error())
		} else {
			doc.okWithNote("configuration replaced; restart to apply")
		}
	case "TailLog":
		var cmd TailLogCmd
		if err := dec.DecodeElement(&cmd, &start); err != nil {
			doc.besError("SyntaxUser", "malformed TailLog element")
			break
		}
		content, err := h.Ctrl.TailLog(cmd.Lines)
		if err != nil {
			doc.besError(errorKind(err), err.Error())
		} else {
			doc.besLog(content)
		}
	case "GetLogContexts":
		_ = dec.Skip()
		for name, on := range h.Ctrl.LogContexts() {
			doc.logContext(name, on)
		}
	case "SetLogContext":
		var cmd SetLogCtxCmd
		if err := dec.DecodeElement(&cmd, &start); err != nil {
			doc.besError("SyntaxUser", "malformed SetLogContext element")
			break
		}
		if cmd.Name == "" {
			doc.besError("SyntaxUser", "SetLogContext missing name")
		} else {
			h.Ctrl.SetLogContext(cmd.Name, cmd.State == "on")
			doc.ok()
		}
	case "GetStatus":
		_ = dec.Skip()
		doc.status(h.Ctrl.StatusText())
	default:
		_ = dec.Skip()
		doc.besError("SyntaxUser", fmt.Sprintf("Command %s unknown", start.Name.Local))
	}
	return false
}

func errorKind(err error) string {
	if errs.CodeOf(err) == errs.InternalFatal {
		return "InternalFatal"
	}
	return "SyntaxUser"
}

// nextStartElement advances dec to the next StartElement token, or
// returns io.EOF when the document is exhausted.
func nextStartElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err != nil {
			return xml.StartElement{}, err
		}
		if se, ok := tok.(xml.StartElement); ok {
			return se, nil
		}
	}
}

// compactXML strips leading/trailing whitespace a hand-built body might
// carry before parsing, matching libxml2's tolerance for loose
// formatting in the original.
func compactXML(b []byte) []byte {
	return bytes.TrimSpace(b)
}
