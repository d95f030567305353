package blocks

import (
	"fmt"

	"github.com/kuitang/blockcheck/internal/errs"
)

// ActionName names a UI action triggered by clicking a control.
type ActionName string

const (
	ActionFocusText      ActionName = "focus-text"
	ActionSelectBlock    ActionName = "select-block"
	ActionFocusTitle     ActionName = "focus-title"
	ActionToggleSettings ActionName = "toggle-settings"
	ActionMenuItem       ActionName = "menu-item"
)

// MenuItem names an entry of the block settings menu.
type MenuItem string

const (
	MenuDuplicate    MenuItem = "duplicate"
	MenuInsertBefore MenuItem = "insert-before"
	MenuInsertAfter  MenuItem = "insert-after"
	MenuRemove       MenuItem = "remove-block"
)

// MenuEntry is a settings menu entry with its visible label.
type MenuEntry struct {
	Item  MenuItem
	Label string
}

// SettingsMenu lists the block settings menu entries in display order.
var SettingsMenu = []MenuEntry{
	{Item: MenuDuplicate, Label: "Duplicate"},
	{Item: MenuInsertBefore, Label: "Insert Before"},
	{Item: MenuInsertAfter, Label: "Insert After"},
	{Item: MenuRemove, Label: "Remove Block"},
}

// Action is a click on an editor control.
type Action struct {
	Name  ActionName
	Index int
	Item  MenuItem
}

// Dispatch applies a UI action. Clicking anywhere ends the typing state.
func (e *Editor) Dispatch(a Action) error {
	switch a.Name {
	case ActionFocusText:
		if err := e.checkIndex(a.Index); err != nil {
			return err
		}
		e.typing = false
		e.menuOpen = false
		e.land(a.Index, true)
	case ActionSelectBlock:
		if err := e.checkIndex(a.Index); err != nil {
			return err
		}
		e.typing = false
		e.menuOpen = false
		e.selectWrapper(a.Index)
	case ActionFocusTitle:
		e.typing = false
		e.menuOpen = false
		e.clearSelection()
		e.titleFocused = true
	case ActionToggleSettings:
		idx, ok := e.State().ToolbarIndex()
		if !ok || idx != a.Index {
			return errs.New(errs.FailedPrecondition, fmt.Sprintf("block toolbar for block %d is not visible", a.Index))
		}
		e.menuOpen = !e.menuOpen
	case ActionMenuItem:
		if !e.menuOpen {
			return errs.New(errs.FailedPrecondition, "block settings menu is not open")
		}
		e.menuOpen = false
		return e.applyMenuItem(a.Item)
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown action %q", a.Name))
	}
	return nil
}

func (e *Editor) applyMenuItem(item MenuItem) error {
	switch item {
	case MenuDuplicate:
		return e.DuplicateSelected()
	case MenuInsertBefore:
		return e.InsertDefaultBefore()
	case MenuInsertAfter:
		return e.InsertDefaultAfter()
	case MenuRemove:
		return e.RemoveSelected()
	default:
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown menu item %q", item))
	}
}
