package plugins

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"plugin"
	"sync"

	"jcr/internal/config"
	jcrPlugin "jcr/pkg/plugin"
)

type LoadedPlugin struct {
	plugin jcrPlugin.Plugin
	path   string
	name   string
}

func (lp *LoadedPlugin) ProcessRequestBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error) {
	return lp.plugin.ProcessRequestBody(ctx, url, body)
}

func (lp *LoadedPlugin) ProcessResponseBody(ctx context.Context, url *url.URL, body []byte) ([]byte, error) {
	return lp.plugin.ProcessResponseBody(ctx, url, body)
}

func (lp *LoadedPlugin) Name() string {
	return lp.name
}

type Manager struct {
	mu      sync.RWMutex
	plugins map[string]*LoadedPlugin
}

func New() (*Manager, error) {
	return &Manager{
		plugins: make(map[string]*LoadedPlugin),
	}, nil
}

func (m *Manager) LoadPlugins(cfg *config.Config) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	newPlugins := make(map[string]*LoadedPlugin)

	for _, mimeTypeConfig := range cfg.MimeTypes {
		for _, pluginConfig := range mimeTypeConfig.Plugins {
			key := pluginKey(pluginConfig.Path, pluginConfig.Name)

			if _, exists := newPlugins[key]; exists {
				continue
			}
			if existing, exists := m.plugins[key]; exists {
				newPlugins[key] = existing
				continue
			}

			loadedPlugin, err := m.loadPlugin(pluginConfig.Path, pluginConfig.Name)
			if err != nil {
				return fmt.Errorf("failed to load plugin %s: %w", key, err)
			}

			newPlugins[key] = loadedPlugin
			slog.Info("Loaded plugin", "path", pluginConfig.Path, "name", pluginConfig.Name,
				"mime_type", mimeTypeConfig.MimeType)
		}
	}

	m.plugins = newPlugins
	return nil
}

func (m *Manager) loadPlugin(path, name string) (*LoadedPlugin, error) {
	if path == config.BuiltinPluginPath {
		newBuiltin, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("unknown builtin plugin '%s'", name)
		}
		return &LoadedPlugin{plugin: newBuiltin(), path: path, name: name}, nil
	}

	p, err := plugin.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open plugin file: %w", err)
	}

	symbol, err := p.Lookup(name)
	if err != nil {
		return nil, fmt.Errorf("failed to find symbol '%s' in plugin: %w", name, err)
	}

	pluginInstance, err := resolveSymbol(symbol, name)
	if err != nil {
		return nil, err
	}

	return &LoadedPlugin{
		plugin: pluginInstance,
		path:   path,
		name:   name,
	}, nil
}

// resolveSymbol turns a looked-up symbol into a Plugin. Exported constructor
// functions are called and exported interface variables are dereferenced.
func resolveSymbol(symbol any, name string) (jcrPlugin.Plugin, error) {
	var pluginInstance jcrPlugin.Plugin
	switch s := symbol.(type) {
	case func() jcrPlugin.Plugin:
		pluginInstance = s()
	case *jcrPlugin.Plugin:
		pluginInstance = *s
	case jcrPlugin.Plugin:
		pluginInstance = s
	default:
		return nil, fmt.Errorf("symbol '%s' does not implement Plugin interface", name)
	}

	if pluginInstance == nil {
		return nil, fmt.Errorf("symbol '%s' returned a nil plugin", name)
	}
	return pluginInstance, nil
}

func (m *Manager) GetPlugin(path, name string) *LoadedPlugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.plugins[pluginKey(path, name)]
}

func pluginKey(path, name string) string {
	return path + "/" + name
}
