/*
omeview bridges an OMERO image server and an interactive viewer.

It fetches multi-dimensional microscopy images, either plane by plane from the
OMERO pixel service or as remote zarr pyramids on object storage, presents
each channel as a viewer layer, and converts the points and shapes drawn in
the viewer back into OMERO ROIs.

Commands

	omeview view Image:<id> [--eager] [--zarr] [--resolutions SEL] [--endpoint_url URL] [--annotations FILE]
	omeview rois save Image:<id> --annotations FILE
	omeview about

Login settings come from a TOML file (--config) and may be overridden with
--host, --user, --password, --key and --group.  A missing image ends the
process with status 110 and the message "No such Image: <id>".

Configuration

	[server]
	host = "https://idr.openmicroscopy.org"
	username = "public"
	password = "public"
	group = -1

	[zarr]
	endpoint = "https://s3.embassy.ebi.ac.uk/"
	bucket = "idr"
	root = "zarr/v0.1"
	cache = "2GiB"

	[viewer]
	concurrency = 4

	[logging]
	logfile = "omeview.log"
	max_log_size = 100
	max_log_age = 30

Packages

	omv       logging, pixel data types and 2D planes
	config    TOML configuration
	omero     OMERO.web JSON API client and ROI model
	array     lazy and dense N-d plane arrays
	planes    plane cache, fetcher and array assembly
	storage   object storage buckets and a bounded read cache
	zarr      zarr v2 arrays and multiscale pyramids
	viewer    layers, dims, console and actions; annotation files
	rois      viewer annotations to OMERO ROIs
	session   one image loaded into one viewer
	tui       terminal front end
*/
package omeview
