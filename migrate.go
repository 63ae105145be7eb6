package affinity

// loadV3 reads streams without identity, footprints or trailer. Link maps
// are already per schema.
func loadV3(d *decoder) error {
	d.readTags()
	d.readPages(false)
	d.readColors()
	d.readLinks()
	return d.err()
}

// loadV2 reads streams that kept a single link map for every schema. The
// shared map is copied to each page so the result matches the current
// layout.
func loadV2(d *decoder) error {
	d.readTags()
	d.readPages(false)
	d.readColors()

	shared := d.readLinkMap()
	if err := d.err(); err != nil {
		return err
	}
	for name := range d.st.pages {
		d.st.links[name] = shared.Clone()
	}
	return nil
}
