package browser

type roleKind int

const (
	roleOther roleKind = iota
	roleInteractive
	roleContent
	roleStructural
)

// Interactive elements always get a ref, content elements only when named.
// Unnamed structural elements are flattened away.
var roleKinds = map[string]roleKind{
	"button": roleInteractive, "link": roleInteractive, "textbox": roleInteractive,
	"searchbox": roleInteractive, "checkbox": roleInteractive, "radio": roleInteractive,
	"combobox": roleInteractive, "listbox": roleInteractive, "option": roleInteractive,
	"menuitem": roleInteractive, "menuitemcheckbox": roleInteractive, "menuitemradio": roleInteractive,
	"slider": roleInteractive, "spinbutton": roleInteractive, "switch": roleInteractive,
	"tab": roleInteractive, "treeitem": roleInteractive,

	"heading": roleContent, "cell": roleContent, "gridcell": roleContent,
	"columnheader": roleContent, "rowheader": roleContent, "listitem": roleContent,
	"article": roleContent, "region": roleContent, "main": roleContent,
	"navigation": roleContent, "img": roleContent,

	"generic": roleStructural, "group": roleStructural, "list": roleStructural,
	"table": roleStructural, "row": roleStructural, "rowgroup": roleStructural,
	"grid": roleStructural, "treegrid": roleStructural, "menu": roleStructural,
	"menubar": roleStructural, "toolbar": roleStructural, "tablist": roleStructural,
	"tree": roleStructural, "directory": roleStructural, "document": roleStructural,
	"rootwebarea": roleStructural, "webarea": roleStructural, "application": roleStructural,
	"presentation": roleStructural, "none": roleStructural, "paragraph": roleStructural,
	"section": roleStructural, "div": roleStructural,
}

func kindOf(role string) roleKind {
	return roleKinds[role]
}
