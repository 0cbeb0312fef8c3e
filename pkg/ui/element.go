// Package ui provides lazy element references and the polling waits every
// page interaction goes through.
//
// An Element is a locator, not a live handle: it is looked up again on each
// operation, so a reference never goes stale between calls.
package ui

import (
	"context"
	"fmt"
	"time"

	"github.com/devicelab-dev/shift-runner/pkg/winappdriver"
)

// Driver is the part of a WinAppDriver session the ui layer uses.
// *winappdriver.Client satisfies it.
type Driver interface {
	FindElement(ctx context.Context, using, value string) (string, error)
	FindElements(ctx context.Context, using, value string) ([]string, error)
	FindChildElement(ctx context.Context, parentID, using, value string) (string, error)
	FindChildElements(ctx context.Context, parentID, using, value string) ([]string, error)

	Click(ctx context.Context, elementID string) error
	Clear(ctx context.Context, elementID string) error
	SendKeysToElement(ctx context.Context, elementID, text string) error
	Text(ctx context.Context, elementID string) (string, error)
	Attribute(ctx context.Context, elementID, name string) (string, error)
	IsDisplayed(ctx context.Context, elementID string) (bool, error)
	IsEnabled(ctx context.Context, elementID string) (bool, error)

	MoveTo(ctx context.Context, elementID string, xOffset, yOffset int) error
	MoveToElement(ctx context.Context, elementID string) error
	MouseClick(ctx context.Context, button int) error
	SendKeys(ctx context.Context, keys ...string) error
	MaximizeWindow(ctx context.Context) error
	SetImplicitWait(ctx context.Context, timeout time.Duration) error
}

var _ Driver = (*winappdriver.Client)(nil)

// By is a locator.
type By struct {
	Using string
	Value string
}

// ByName locates by the UI Automation Name property.
func ByName(name string) By { return By{Using: winappdriver.ByName, Value: name} }

// ByAccessibilityID locates by AutomationId.
func ByAccessibilityID(id string) By { return By{Using: winappdriver.ByAccessibilityID, Value: id} }

// ByXPath locates by XPath over the UI Automation tree.
func ByXPath(expr string) By { return By{Using: winappdriver.ByXPath, Value: expr} }

func (b By) String() string {
	return fmt.Sprintf("%s=%q", b.Using, b.Value)
}

// Element is a lazy reference: a locator plus an optional parent scope.
type Element struct {
	by     By
	parent *Element
	label  string
}

// Find returns a top-level element reference.
func Find(by By) *Element {
	return &Element{by: by}
}

// Find returns a reference scoped to descendants of e.
func (e *Element) Find(by By) *Element {
	return &Element{by: by, parent: e}
}

// Named sets the label used in logs and errors.
func (e *Element) Named(label string) *Element {
	c := *e
	c.label = label
	return &c
}

func (e *Element) String() string {
	if e.label != "" {
		return e.label
	}
	if e.parent != nil {
		return e.parent.String() + " > " + e.by.String()
	}
	return e.by.String()
}

// Resolve looks the element up now and returns its id.
func (e *Element) Resolve(ctx context.Context, d Driver) (string, error) {
	if e.parent == nil {
		return d.FindElement(ctx, e.by.Using, e.by.Value)
	}
	parentID, err := e.parent.Resolve(ctx, d)
	if err != nil {
		return "", err
	}
	return d.FindChildElement(ctx, parentID, e.by.Using, e.by.Value)
}

// ResolveAll returns every element the locator currently matches.
func (e *Element) ResolveAll(ctx context.Context, d Driver) ([]string, error) {
	if e.parent == nil {
		return d.FindElements(ctx, e.by.Using, e.by.Value)
	}
	parentID, err := e.parent.Resolve(ctx, d)
	if err != nil {
		return nil, err
	}
	return d.FindChildElements(ctx, parentID, e.by.Using, e.by.Value)
}
