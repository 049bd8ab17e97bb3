// Package navigate выполняет полные переходы на страницы: открывает адрес в
// системном браузере, а если это невозможно, печатает его пользователю.
package navigate

import (
	"fmt"
	"io"
	"net/url"

	"github.com/pkg/browser"
)

// Navigator разрешает относительные пути относительно адреса веб-приложения.
type Navigator struct {
	base *url.URL
	out  io.Writer
	open func(string) error
}

// New создаёт Navigator для веб-приложения по адресу baseURL.
func New(baseURL string, out io.Writer) (*Navigator, error) {
	const op = "navigate.New"

	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &Navigator{base: base, out: out, open: browser.OpenURL}, nil
}

// Resolve превращает путь вроде /login в абсолютный адрес.
func (n *Navigator) Resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", err
	}
	return n.base.ResolveReference(ref).String(), nil
}

// Navigate открывает target. Ошибка браузера не считается ошибкой перехода:
// адрес остаётся в выводе.
func (n *Navigator) Navigate(target string) error {
	const op = "navigate.Navigate"

	abs, err := n.Resolve(target)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := n.open(abs); err != nil {
		fmt.Fprintf(n.out, "Open this URL in your browser: %s\n", abs)
		return nil
	}
	fmt.Fprintf(n.out, "Opened %s\n", abs)
	return nil
}
