package server

import (
	"bytes"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// reloadScript connects to the reload endpoint and reloads the page on
// every build. It reconnects when the dev server restarts.
const reloadScript = `(function(){
  function connect(){
    var proto = location.protocol === "https:" ? "wss://" : "ws://";
    var ws = new WebSocket(proto + location.host + "%s");
    ws.onmessage = function(){ location.reload(); };
    ws.onclose = function(){ setTimeout(connect, 1000); };
  }
  connect();
})();`

// InjectPage appends the live-reload client and, when overlay is not
// empty, the error overlay to the page body. Documents without a body
// get one from the HTML parser.
func InjectPage(page []byte, wsPath, overlay string) ([]byte, error) {
	doc, err := html.Parse(bytes.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parsing page: %w", err)
	}

	body := findElement(doc, atom.Body)
	if body == nil {
		return nil, fmt.Errorf("page has no body")
	}

	if overlay != "" {
		nodes, err := html.ParseFragment(strings.NewReader(overlay), body)
		if err != nil {
			return nil, fmt.Errorf("parsing overlay: %w", err)
		}
		for _, n := range nodes {
			body.AppendChild(n)
		}
	}

	script := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "data-stencil", Val: "reload"}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: fmt.Sprintf(reloadScript, wsPath)})
	body.AppendChild(script)

	var buf bytes.Buffer
	if err := html.Render(&buf, doc); err != nil {
		return nil, fmt.Errorf("rendering page: %w", err)
	}
	return buf.Bytes(), nil
}

func findElement(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, a); found != nil {
			return found
		}
	}
	return nil
}
