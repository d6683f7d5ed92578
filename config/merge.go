package config

// mergeConfigs merges override configuration into base. Scalars and lists set
// in override replace the base value; extension keys are merged shallowly.
func mergeConfigs(base, override *Config) *Config {
	result := *base

	if override.Server.Host != "" {
		result.Server.Host = override.Server.Host
	}
	if override.Server.Port != 0 {
		result.Server.Port = override.Server.Port
	}
	if override.Server.Scheme != "" {
		result.Server.Scheme = override.Server.Scheme
	}

	mergeString(&result.Stream.Path, override.Stream.Path)
	mergeString(&result.Stream.ReconnectFloor, override.Stream.ReconnectFloor)
	mergeString(&result.Stream.ReconnectCeiling, override.Stream.ReconnectCeiling)
	mergeString(&result.Stream.KeepAlive, override.Stream.KeepAlive)
	mergeString(&result.Stream.HandshakeTimeout, override.Stream.HandshakeTimeout)

	mergeString(&result.Hooks.QueryTimeout, override.Hooks.QueryTimeout)
	mergeString(&result.Hooks.NotifyTimeout, override.Hooks.NotifyTimeout)
	mergeList(&result.Hooks.MutatingTools, override.Hooks.MutatingTools)
	mergeList(&result.Hooks.WatchTools, override.Hooks.WatchTools)
	mergeList(&result.Hooks.BlockedPhases, override.Hooks.BlockedPhases)
	mergeList(&result.Hooks.ReadOnlyTools, override.Hooks.ReadOnlyTools)
	mergeList(&result.Hooks.IgnorePaths, override.Hooks.IgnorePaths)
	mergeList(&result.Hooks.DelegationTools, override.Hooks.DelegationTools)
	mergeList(&result.Hooks.DeliveryAgents, override.Hooks.DeliveryAgents)

	if len(base.Extensions) > 0 || len(override.Extensions) > 0 {
		result.Extensions = make(map[string]interface{}, len(base.Extensions)+len(override.Extensions))
		for k, v := range base.Extensions {
			result.Extensions[k] = v
		}
		for k, v := range override.Extensions {
			result.Extensions[k] = v
		}
	}

	return &result
}

func mergeString(dst *string, value string) {
	if value != "" {
		*dst = value
	}
}

func mergeList(dst *[]string, value []string) {
	if len(value) > 0 {
		*dst = append([]string(nil), value...)
	}
}
