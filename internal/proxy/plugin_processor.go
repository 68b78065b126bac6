// This file contains the common plugin processing logic for jcr.
// Request and response bodies run through the same chain walker; only the
// plugin method that is called differs.
package proxy

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"jcr/internal/config"
	"jcr/internal/plugins"
)

// ProcessorFunc defines a function that processes a body with a plugin
type ProcessorFunc func(plugin *plugins.LoadedPlugin, ctx context.Context, url *url.URL, body []byte) ([]byte, error)

// processWithPlugins runs body through every configured plugin in order
func (p *Proxy) processWithPlugins(
	body []byte,
	req *http.Request,
	pluginConfigs []config.PluginConfig,
	processor ProcessorFunc,
) ([]byte, error) {
	ctx := req.Context()
	requestURL := req.URL

	for _, pluginConfig := range pluginConfigs {
		plugin := p.plugins.GetPlugin(pluginConfig.Path, pluginConfig.Name)
		if plugin == nil {
			return nil, fmt.Errorf("plugin not found: %s/%s", pluginConfig.Path, pluginConfig.Name)
		}

		var err error
		body, err = processor(plugin, ctx, requestURL, body)
		if err != nil {
			return nil, fmt.Errorf("plugin %s failed: %w", pluginConfig.Name, err)
		}
	}

	return body, nil
}

func requestProcessor(plugin *plugins.LoadedPlugin, ctx context.Context, url *url.URL, body []byte) ([]byte, error) {
	return plugin.ProcessRequestBody(ctx, url, body)
}

func responseProcessor(plugin *plugins.LoadedPlugin, ctx context.Context, url *url.URL, body []byte) ([]byte, error) {
	return plugin.ProcessResponseBody(ctx, url, body)
}
