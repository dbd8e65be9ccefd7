package engine

// SystemPropertyPrefix is prepended to system property names when merged
// into template inputs.
const SystemPropertyPrefix = "system_"

// MergeProperties returns a copy of properties with every system property
// added under "system_<key>". System values win on collision. Neither input
// is modified.
func MergeProperties(properties, systemProperties PropValueMap) PropValueMap {
	merged := make(PropValueMap, len(properties)+len(systemProperties))
	for k, v := range properties {
		merged[k] = v
	}
	for k, v := range systemProperties {
		merged[SystemPropertyPrefix+k] = v
	}
	return merged
}
